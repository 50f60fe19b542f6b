package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Helper to create a cached descriptor for testing.
func newTestDescriptor() *domain.MeshDescriptor {
	d := domain.NewMeshDescriptor("Hypertension")
	d.DescriptorUI = "D006973"
	d.AlternateLabels = []string{"High Blood Pressure"}
	d.TreeNumbers = []string{"C14.907.489"}
	d.ScopeNote = "Persistently high systemic arterial blood pressure."
	return d
}

// descriptorRows builds a pgxmock row set for a descriptor.
func descriptorRows(t *testing.T, d *domain.MeshDescriptor) *pgxmock.Rows {
	t.Helper()

	alternateJSON, err := json.Marshal(d.AlternateLabels)
	require.NoError(t, err)
	treeJSON, err := json.Marshal(d.TreeNumbers)
	require.NoError(t, err)
	broaderJSON, err := json.Marshal(d.BroaderTerms)
	require.NoError(t, err)
	narrowerJSON, err := json.Marshal(d.NarrowerTerms)
	require.NoError(t, err)

	return pgxmock.NewRows([]string{
		"id", "descriptor_ui", "label", "alternate_labels", "tree_numbers",
		"broader_terms", "narrower_terms", "scope_note", "fetched_at",
	}).AddRow(
		d.ID, nullString(d.DescriptorUI), d.Label, alternateJSON, treeJSON,
		broaderJSON, narrowerJSON, nullString(d.ScopeNote), d.FetchedAt,
	)
}

func TestPgMeshRepository_GetByTerm(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves via lookup index", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		descriptor := newTestDescriptor()

		mock.ExpectQuery("SELECT .* FROM mesh_descriptors d JOIN mesh_lookup_index i").
			WithArgs("hypertension").
			WillReturnRows(descriptorRows(t, descriptor))

		got, err := repo.GetByTerm(ctx, "hypertension")
		require.NoError(t, err)
		assert.Equal(t, "D006973", got.DescriptorUI)
		assert.Equal(t, "Hypertension", got.Label)
		assert.Equal(t, []string{"High Blood Pressure"}, got.AlternateLabels)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("falls back to label match on index miss", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		descriptor := newTestDescriptor()

		mock.ExpectQuery("SELECT .* FROM mesh_descriptors d JOIN mesh_lookup_index i").
			WithArgs("high blood pressure").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT .* FROM mesh_descriptors WHERE lower\\(label\\) = \\$1").
			WithArgs("high blood pressure").
			WillReturnRows(descriptorRows(t, descriptor))

		got, err := repo.GetByTerm(ctx, "high blood pressure")
		require.NoError(t, err)
		assert.Equal(t, "Hypertension", got.Label)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found on full miss", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)

		mock.ExpectQuery("SELECT .* FROM mesh_descriptors d JOIN mesh_lookup_index i").
			WithArgs("unmapped term").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT .* FROM mesh_descriptors WHERE lower\\(label\\) = \\$1").
			WithArgs("unmapped term").
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByTerm(ctx, "unmapped term")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rejects empty term", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		_, err = repo.GetByTerm(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgMeshRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new descriptor with lookup row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		descriptor := newTestDescriptor()
		lookup := domain.NewMeshLookupIndex("high blood pressure", descriptor.ID, domain.MeshMatchExact)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM mesh_descriptors WHERE descriptor_ui = \\$1").
			WithArgs("D006973").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec("INSERT INTO mesh_descriptors").
			WithArgs(
				descriptor.ID, pgxmock.AnyArg(), descriptor.Label,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), descriptor.FetchedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("INSERT INTO mesh_lookup_index").
			WithArgs(lookup.ID, lookup.Term, descriptor.ID, lookup.MatchType, lookup.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		saved, err := repo.Save(ctx, descriptor, lookup)
		require.NoError(t, err)
		assert.Equal(t, descriptor.ID, saved.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns existing descriptor on UI conflict", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		existing := newTestDescriptor()
		incoming := newTestDescriptor() // same UI, different row ID
		lookup := domain.NewMeshLookupIndex("hypertension", incoming.ID, domain.MeshMatchExact)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .* FROM mesh_descriptors WHERE descriptor_ui = \\$1").
			WithArgs("D006973").
			WillReturnRows(descriptorRows(t, existing))
		mock.ExpectExec("INSERT INTO mesh_lookup_index").
			WithArgs(lookup.ID, lookup.Term, existing.ID, lookup.MatchType, lookup.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		saved, err := repo.Save(ctx, incoming, lookup)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, saved.ID)
		assert.Equal(t, existing.ID, lookup.DescriptorID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects descriptor without label", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		descriptor := newTestDescriptor()
		descriptor.Label = ""

		_, err = repo.Save(ctx, descriptor, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestPgMeshRepository_AppendLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("appends index row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		descriptor := newTestDescriptor()
		lookup := domain.NewMeshLookupIndex("htn", descriptor.ID, domain.MeshMatchFuzzy)

		mock.ExpectExec("INSERT INTO mesh_lookup_index").
			WithArgs(lookup.ID, lookup.Term, descriptor.ID, lookup.MatchType, lookup.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = repo.AppendLookup(ctx, lookup)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects missing descriptor ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMeshRepository(mock)
		lookup := &domain.MeshLookupIndex{Term: "htn"}

		err = repo.AppendLookup(ctx, lookup)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
