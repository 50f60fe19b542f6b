package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/medical-research-service/internal/domain"
)

// ResultRepository handles persistence of ranked search results. Results are
// written once per session during synthesis and are immutable afterwards.
type ResultRepository interface {
	// BulkCreate inserts the full ranked reference list of a session in a
	// single batch. Every result must carry the owning session ID.
	// Returns domain.ErrInvalidInput if any result is missing required fields.
	BulkCreate(ctx context.Context, results []*domain.SearchResult) error

	// ListBySession retrieves all results of a session ordered by reference
	// number ascending. Returns an empty slice when the session has no results.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.SearchResult, error)

	// DeleteBySession removes all results of a session and returns the number
	// of rows removed.
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}
