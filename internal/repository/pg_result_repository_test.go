package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Helper to create a ranked result for testing.
func newTestResult(sessionID uuid.UUID, refNum int) *domain.SearchResult {
	result := domain.NewSearchResult(sessionID, domain.SourceTypePubMed)
	result.Title = "Metformin and glycemic control"
	result.PMID = "12345678"
	result.Authors = []string{"Smith JA", "Jones R"}
	result.Journal = "Diabetes Care"
	result.PublicationYear = 2020
	result.EvidenceLevel = domain.EvidenceLevelII
	result.CompositeScore = 0.87
	result.ReferenceNumber = refNum
	result.VancouverCitation = "Smith JA, Jones R. Metformin and glycemic control. Diabetes Care. 2020."
	return result
}

func TestPgResultRepository_BulkCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts results in one batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		sessionID := uuid.New()
		results := []*domain.SearchResult{
			newTestResult(sessionID, 1),
			newTestResult(sessionID, 2),
		}

		batch := mock.ExpectBatch()
		for _, r := range results {
			batch.ExpectExec("INSERT INTO session_results").
				WithArgs(
					r.ID, r.SessionID, r.Source, r.Title,
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
					pgxmock.AnyArg(), pgxmock.AnyArg(),
					r.PublicationYear, r.CitationCount,
					r.EvidenceLevel, r.RelevanceScore, r.EvidenceLevelScore,
					r.CitationScore, r.RecencyScore, r.CompositeScore,
					r.ReferenceNumber, pgxmock.AnyArg(),
					r.CreatedAt,
				).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		err = repo.BulkCreate(ctx, results)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no-op for empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		err = repo.BulkCreate(ctx, nil)
		assert.NoError(t, err)
	})

	t.Run("returns validation error for missing session ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult(uuid.New(), 1)
		result.SessionID = uuid.Nil

		err = repo.BulkCreate(ctx, []*domain.SearchResult{result})

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "session_id", validationErr.Field)
	})

	t.Run("returns validation error for missing title", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		result := newTestResult(uuid.New(), 1)
		result.Title = ""

		err = repo.BulkCreate(ctx, []*domain.SearchResult{result})

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "title", validationErr.Field)
	})
}

func TestPgResultRepository_ListBySession(t *testing.T) {
	ctx := context.Background()

	t.Run("lists results ordered by reference number", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		sessionID := uuid.New()
		result := newTestResult(sessionID, 1)

		typesJSON, err := json.Marshal(result.PublicationTypes)
		require.NoError(t, err)
		meshJSON, err := json.Marshal(result.MeshTerms)
		require.NoError(t, err)
		authorsJSON, err := json.Marshal(result.Authors)
		require.NoError(t, err)

		rows := pgxmock.NewRows([]string{
			"id", "session_id", "source", "title", "url", "snippet", "abstract",
			"publication_type", "publication_types", "mesh_terms", "doi", "pmid",
			"authors", "journal", "volume", "issue", "pages", "publication_year", "citation_count",
			"evidence_level", "relevance_score", "evidence_level_score", "citation_score",
			"recency_score", "composite_score", "reference_number", "vancouver_citation",
			"created_at",
		}).AddRow(
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

		mock.ExpectQuery("SELECT .* FROM session_results WHERE session_id = \\$1 ORDER BY reference_number ASC").
			WithArgs(sessionID).
			WillReturnRows(rows)

		results, err := repo.ListBySession(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, result.Title, results[0].Title)
		assert.Equal(t, result.PMID, results[0].PMID)
		assert.Equal(t, []string{"Smith JA", "Jones R"}, results[0].Authors)
		assert.Equal(t, 1, results[0].ReferenceNumber)
		assert.Equal(t, domain.EvidenceLevelII, results[0].EvidenceLevel)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when no results", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgResultRepository(mock)
		sessionID := uuid.New()

		mock.ExpectQuery("SELECT .* FROM session_results WHERE session_id = \\$1 ORDER BY reference_number ASC").
			WithArgs(sessionID).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "session_id", "source", "title", "url", "snippet", "abstract",
				"publication_type", "publication_types", "mesh_terms", "doi", "pmid",
				"authors", "journal", "volume", "issue", "pages", "publication_year", "citation_count",
				"evidence_level", "relevance_score", "evidence_level_score", "citation_score",
				"recency_score", "composite_score", "reference_number", "vancouver_citation",
				"created_at",
			}))

		results, err := repo.ListBySession(ctx, sessionID)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NotNil(t, results)
	})
}

func TestPgResultRepository_DeleteBySession(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgResultRepository(mock)
	sessionID := uuid.New()

	mock.ExpectExec("DELETE FROM session_results WHERE session_id = \\$1").
		WithArgs(sessionID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := repo.DeleteBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
