package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Compile-time interface verification.
var _ ResultRepository = (*PgResultRepository)(nil)

// PgResultRepository is a PostgreSQL implementation of ResultRepository.
type PgResultRepository struct {
	db DBTX
}

// NewPgResultRepository creates a new PostgreSQL result repository.
func NewPgResultRepository(db DBTX) *PgResultRepository {
	return &PgResultRepository{db: db}
}

const resultColumns = `id, session_id, source, title, url, snippet, abstract,
		publication_type, publication_types, mesh_terms, doi, pmid,
		authors, journal, volume, issue, pages, publication_year, citation_count,
		evidence_level, relevance_score, evidence_level_score, citation_score,
		recency_score, composite_score, reference_number, vancouver_citation,
		created_at`

// BulkCreate inserts the full ranked reference list of a session.
// Uses pgx.Batch to send all inserts in a single network roundtrip.
func (r *PgResultRepository) BulkCreate(ctx context.Context, results []*domain.SearchResult) error {
	if len(results) == 0 {
		return nil
	}

	insertQuery := `
		INSERT INTO session_results (
			id, session_id, source, title, url, snippet, abstract,
			publication_type, publication_types, mesh_terms, doi, pmid,
			authors, journal, volume, issue, pages, publication_year, citation_count,
			evidence_level, relevance_score, evidence_level_score, citation_score,
			recency_score, composite_score, reference_number, vancouver_citation,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26, $27,
			$28
		)`

	batch := &pgx.Batch{}
	for _, result := range results {
		if result == nil {
			return domain.NewValidationError("result", "result cannot be nil")
		}
		if result.ID == uuid.Nil {
			return domain.NewValidationError("id", "result ID is required")
		}
		if result.SessionID == uuid.Nil {
			return domain.NewValidationError("session_id", "session ID is required")
		}
		if result.Title == "" {
			return domain.NewValidationError("title", "title is required")
		}

		typesJSON, err := json.Marshal(result.PublicationTypes)
		if err != nil {
			return fmt.Errorf("failed to marshal publication types: %w", err)
		}
		meshJSON, err := json.Marshal(result.MeshTerms)
		if err != nil {
			return fmt.Errorf("failed to marshal mesh terms: %w", err)
		}
		authorsJSON, err := json.Marshal(result.Authors)
		if err != nil {
			return fmt.Errorf("failed to marshal authors: %w", err)
		}

		batch.Queue(insertQuery,
			result.ID, result.SessionID, result.Source, result.Title,
			nullString(result.URL), nullString(result.Snippet), nullString(result.Abstract),
			nullString(result.PublicationType), typesJSON, meshJSON,
			nullString(result.DOI), nullString(result.PMID),
			authorsJSON, nullString(result.Journal), nullString(result.Volume),
			nullString(result.Issue), nullString(result.Pages),
			result.PublicationYear, result.CitationCount,
			result.EvidenceLevel, result.RelevanceScore, result.EvidenceLevelScore,
			result.CitationScore, result.RecencyScore, result.CompositeScore,
			result.ReferenceNumber, nullString(result.VancouverCitation),
			result.CreatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	return nil
}

// ListBySession retrieves all results of a session ordered by reference number.
func (r *PgResultRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.SearchResult, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM session_results
		WHERE session_id = $1
		ORDER BY reference_number ASC`, resultColumns)

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.SearchResult, 0)
	for rows.Next() {
		result, err := scanResultFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// DeleteBySession removes all results of a session.
func (r *PgResultRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	result, err := r.db.Exec(ctx, "DELETE FROM session_results WHERE session_id = $1", sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}

	return result.RowsAffected(), nil
}

// resultScanDest holds the destination pointers for scanning a SearchResult row.
type resultScanDest struct {
	result            domain.SearchResult
	url               *string
	snippet           *string
	abstract          *string
	publicationType   *string
	typesJSON         []byte
	meshJSON          []byte
	doi               *string
	pmid              *string
	authorsJSON       []byte
	journal           *string
	volume            *string
	issue             *string
	pages             *string
	vancouverCitation *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *resultScanDest) destinations() []interface{} {
	return []interface{}{
		&d.result.ID, &d.result.SessionID, &d.result.Source, &d.result.Title,
		&d.url, &d.snippet, &d.abstract,
		&d.publicationType, &d.typesJSON, &d.meshJSON, &d.doi, &d.pmid,
		&d.authorsJSON, &d.journal, &d.volume, &d.issue, &d.pages,
		&d.result.PublicationYear, &d.result.CitationCount,
		&d.result.EvidenceLevel, &d.result.RelevanceScore, &d.result.EvidenceLevelScore,
		&d.result.CitationScore, &d.result.RecencyScore, &d.result.CompositeScore,
		&d.result.ReferenceNumber, &d.vancouverCitation,
		&d.result.CreatedAt,
	}
}

// finalize performs post-scan processing: sets nullable fields and unmarshals JSON.
func (d *resultScanDest) finalize() (*domain.SearchResult, error) {
	setIfPresent := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIfPresent(&d.result.URL, d.url)
	setIfPresent(&d.result.Snippet, d.snippet)
	setIfPresent(&d.result.Abstract, d.abstract)
	setIfPresent(&d.result.PublicationType, d.publicationType)
	setIfPresent(&d.result.DOI, d.doi)
	setIfPresent(&d.result.PMID, d.pmid)
	setIfPresent(&d.result.Journal, d.journal)
	setIfPresent(&d.result.Volume, d.volume)
	setIfPresent(&d.result.Issue, d.issue)
	setIfPresent(&d.result.Pages, d.pages)
	setIfPresent(&d.result.VancouverCitation, d.vancouverCitation)

	if len(d.typesJSON) > 0 {
		if err := json.Unmarshal(d.typesJSON, &d.result.PublicationTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal publication types: %w", err)
		}
	}
	if len(d.meshJSON) > 0 {
		if err := json.Unmarshal(d.meshJSON, &d.result.MeshTerms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mesh terms: %w", err)
		}
	}
	if len(d.authorsJSON) > 0 {
		if err := json.Unmarshal(d.authorsJSON, &d.result.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	return &d.result, nil
}

// scanResultFromRows scans the current row from pgx.Rows into a SearchResult.
func scanResultFromRows(rows pgx.Rows) (*domain.SearchResult, error) {
	var dest resultScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
