package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Compile-time interface verification.
var _ MeshRepository = (*PgMeshRepository)(nil)

// PgMeshRepository is a PostgreSQL implementation of MeshRepository.
type PgMeshRepository struct {
	db DBTX
}

// NewPgMeshRepository creates a new PostgreSQL vocabulary repository.
func NewPgMeshRepository(db DBTX) *PgMeshRepository {
	return &PgMeshRepository{db: db}
}

const descriptorColumns = `id, descriptor_ui, label, alternate_labels, tree_numbers,
		broader_terms, narrower_terms, scope_note, fetched_at`

// GetByTerm resolves a normalized term to its cached descriptor. The lookup
// index is checked first; a miss falls back to matching descriptor labels and
// alternate labels so synonyms resolve without an index row.
func (r *PgMeshRepository) GetByTerm(ctx context.Context, normalizedTerm string) (*domain.MeshDescriptor, error) {
	if normalizedTerm == "" {
		return nil, domain.NewValidationError("term", "term is required")
	}

	indexQuery := fmt.Sprintf(`
		SELECT %s
		FROM mesh_descriptors d
		JOIN mesh_lookup_index i ON i.descriptor_id = d.id
		WHERE i.term = $1
		LIMIT 1`, qualifyColumns("d", descriptorColumns))

	row := r.db.QueryRow(ctx, indexQuery, normalizedTerm)
	descriptor, err := scanDescriptor(row)
	if err == nil {
		return descriptor, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to resolve term via index: %w", err)
	}

	// Fall back to descriptor labels and alternate labels.
	labelQuery := fmt.Sprintf(`
		SELECT %s
		FROM mesh_descriptors
		WHERE lower(label) = $1
		   OR EXISTS (
			SELECT 1 FROM jsonb_array_elements_text(alternate_labels) AS al
			WHERE lower(al) = $1
		   )
		LIMIT 1`, descriptorColumns)

	row = r.db.QueryRow(ctx, labelQuery, normalizedTerm)
	descriptor, err = scanDescriptor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("mesh descriptor", normalizedTerm)
		}
		return nil, fmt.Errorf("failed to resolve term via labels: %w", err)
	}

	return descriptor, nil
}

// Save persists a descriptor together with the lookup index row for the term
// that produced it, in a single transaction. If a descriptor with the same
// DescriptorUI already exists, the existing row is returned and only the
// index row is added.
func (r *PgMeshRepository) Save(ctx context.Context, descriptor *domain.MeshDescriptor, lookup *domain.MeshLookupIndex) (*domain.MeshDescriptor, error) {
	if descriptor == nil {
		return nil, domain.NewValidationError("descriptor", "descriptor cannot be nil")
	}
	if descriptor.Label == "" {
		return nil, domain.NewValidationError("label", "descriptor label is required")
	}

	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction for save: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgMeshRepository{db: tx}
		saved, err := txRepo.saveInTx(ctx, descriptor, lookup)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit save: %w", err)
		}
		return saved, nil
	}

	return r.saveInTx(ctx, descriptor, lookup)
}

// saveInTx performs the descriptor upsert and index append within the current DBTX.
func (r *PgMeshRepository) saveInTx(ctx context.Context, descriptor *domain.MeshDescriptor, lookup *domain.MeshLookupIndex) (*domain.MeshDescriptor, error) {
	saved := descriptor

	// Descriptors without a UI (seeded or synthetic) are deduplicated by label.
	if descriptor.DescriptorUI != "" {
		existing, err := r.getByDescriptorUI(ctx, descriptor.DescriptorUI)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if existing != nil {
			saved = existing
		}
	} else {
		existing, err := r.getByLabel(ctx, descriptor.Label)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if existing != nil {
			saved = existing
		}
	}

	if saved == descriptor {
		if err := r.insertDescriptor(ctx, descriptor); err != nil {
			// A concurrent writer may have inserted the same descriptor
			// between our read and write. Re-read and keep theirs.
			if isPgUniqueViolation(err) && descriptor.DescriptorUI != "" {
				existing, readErr := r.getByDescriptorUI(ctx, descriptor.DescriptorUI)
				if readErr != nil {
					return nil, fmt.Errorf("failed to re-read descriptor after conflict: %w", readErr)
				}
				saved = existing
			} else {
				return nil, err
			}
		}
	}

	if lookup != nil {
		lookup.DescriptorID = saved.ID
		if err := r.appendLookupRow(ctx, lookup); err != nil {
			return nil, err
		}
	}

	return saved, nil
}

// AppendLookup adds an index row pointing an additional term at an existing
// descriptor. Duplicate (term, descriptor) pairs are ignored.
func (r *PgMeshRepository) AppendLookup(ctx context.Context, lookup *domain.MeshLookupIndex) error {
	if lookup == nil {
		return domain.NewValidationError("lookup", "lookup cannot be nil")
	}
	if lookup.DescriptorID == uuid.Nil {
		return domain.NewValidationError("descriptor_id", "descriptor ID is required")
	}
	return r.appendLookupRow(ctx, lookup)
}

func (r *PgMeshRepository) insertDescriptor(ctx context.Context, descriptor *domain.MeshDescriptor) error {
	alternateJSON, err := json.Marshal(descriptor.AlternateLabels)
	if err != nil {
		return fmt.Errorf("failed to marshal alternate labels: %w", err)
	}
	treeJSON, err := json.Marshal(descriptor.TreeNumbers)
	if err != nil {
		return fmt.Errorf("failed to marshal tree numbers: %w", err)
	}
	broaderJSON, err := json.Marshal(descriptor.BroaderTerms)
	if err != nil {
		return fmt.Errorf("failed to marshal broader terms: %w", err)
	}
	narrowerJSON, err := json.Marshal(descriptor.NarrowerTerms)
	if err != nil {
		return fmt.Errorf("failed to marshal narrower terms: %w", err)
	}

	query := `
		INSERT INTO mesh_descriptors (
			id, descriptor_ui, label, alternate_labels, tree_numbers,
			broader_terms, narrower_terms, scope_note, fetched_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)`

	_, err = r.db.Exec(ctx, query,
		descriptor.ID, nullString(descriptor.DescriptorUI), descriptor.Label,
		alternateJSON, treeJSON, broaderJSON, narrowerJSON,
		nullString(descriptor.ScopeNote), descriptor.FetchedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

func (r *PgMeshRepository) appendLookupRow(ctx context.Context, lookup *domain.MeshLookupIndex) error {
	query := `
		INSERT INTO mesh_lookup_index (id, term, descriptor_id, match_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (term, descriptor_id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		lookup.ID, lookup.Term, lookup.DescriptorID, lookup.MatchType, lookup.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append lookup row: %w", err)
	}

	return nil
}

func (r *PgMeshRepository) getByDescriptorUI(ctx context.Context, descriptorUI string) (*domain.MeshDescriptor, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM mesh_descriptors
		WHERE descriptor_ui = $1`, descriptorColumns)

	return scanDescriptor(r.db.QueryRow(ctx, query, descriptorUI))
}

func (r *PgMeshRepository) getByLabel(ctx context.Context, label string) (*domain.MeshDescriptor, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM mesh_descriptors
		WHERE lower(label) = lower($1)`, descriptorColumns)

	return scanDescriptor(r.db.QueryRow(ctx, query, label))
}

// descriptorScanDest holds the destination pointers for scanning a MeshDescriptor row.
type descriptorScanDest struct {
	descriptor    domain.MeshDescriptor
	descriptorUI  *string
	alternateJSON []byte
	treeJSON      []byte
	broaderJSON   []byte
	narrowerJSON  []byte
	scopeNote     *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *descriptorScanDest) destinations() []interface{} {
	return []interface{}{
		&d.descriptor.ID, &d.descriptorUI, &d.descriptor.Label,
		&d.alternateJSON, &d.treeJSON,
		&d.broaderJSON, &d.narrowerJSON, &d.scopeNote, &d.descriptor.FetchedAt,
	}
}

// finalize performs post-scan processing: sets nullable fields and unmarshals JSON.
func (d *descriptorScanDest) finalize() (*domain.MeshDescriptor, error) {
	if d.descriptorUI != nil {
		d.descriptor.DescriptorUI = *d.descriptorUI
	}
	if d.scopeNote != nil {
		d.descriptor.ScopeNote = *d.scopeNote
	}

	fields := []struct {
		raw []byte
		dst *[]string
	}{
		{d.alternateJSON, &d.descriptor.AlternateLabels},
		{d.treeJSON, &d.descriptor.TreeNumbers},
		{d.broaderJSON, &d.descriptor.BroaderTerms},
		{d.narrowerJSON, &d.descriptor.NarrowerTerms},
	}
	for _, f := range fields {
		if len(f.raw) > 0 {
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("failed to unmarshal descriptor field: %w", err)
			}
		}
	}

	return &d.descriptor, nil
}

// scanDescriptor scans a single row into a MeshDescriptor.
func scanDescriptor(row pgx.Row) (*domain.MeshDescriptor, error) {
	var dest descriptorScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// qualifyColumns prefixes each column in a comma-separated list with a table alias.
func qualifyColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
