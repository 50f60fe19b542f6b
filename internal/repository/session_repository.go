package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/medical-research-service/internal/domain"
)

// SessionRepository handles research session persistence and lifecycle management.
// It provides methods for creating, retrieving, updating, and listing sessions.
type SessionRepository interface {
	// Create inserts a new research session.
	// The session must have a valid ID and a query with at least one clause.
	// Returns domain.ErrAlreadyExists if a session with the same ID already exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, session *domain.ResearchSession) error

	// Get retrieves a research session by its ID. The returned session does
	// not include results; use ResultRepository.ListBySession for those.
	// Returns domain.ErrNotFound if no matching session exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error)

	// Update performs an optimistic update on a session using SELECT FOR UPDATE.
	// The provided function receives the current session state and should return
	// an error if the update should be aborted. Changes made to the session in
	// the function are persisted.
	// Returns domain.ErrNotFound if no matching session exists.
	//
	// Concurrent update behavior:
	//   - If the row lock cannot be acquired before context deadline, returns context.DeadlineExceeded.
	//   - If the provided function returns an error, the transaction is rolled back and that error is returned.
	Update(ctx context.Context, id uuid.UUID, fn func(*domain.ResearchSession) error) error

	// UpdatePhase transitions a session to a new phase, enforcing the phase
	// machine. Progress is set to the phase baseline, never lower than the
	// current value. The errorMsg parameter is stored only when transitioning
	// to the failed phase.
	// Returns domain.ErrInvalidTransition if the transition is not allowed.
	// Returns domain.ErrNotFound if no matching session exists.
	UpdatePhase(ctx context.Context, id uuid.UUID, phase domain.SessionPhase, errorMsg string) error

	// List retrieves research sessions matching the filter criteria.
	// Returns the matching sessions and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter SessionFilter) ([]*domain.ResearchSession, int64, error)

	// Delete removes a session and, through cascading foreign keys, its results.
	// Returns domain.ErrNotFound if no matching session exists.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionFilter specifies criteria for listing research sessions.
type SessionFilter struct {
	// Phase filters by one or more session phases (optional).
	// When multiple phases are provided, sessions matching any phase are returned.
	Phase []domain.SessionPhase

	// Mode filters by session mode (optional).
	Mode domain.SessionMode

	// CreatedAfter filters to sessions created after this timestamp (optional).
	CreatedAfter *time.Time

	// CreatedBefore filters to sessions created before this timestamp (optional).
	CreatedBefore *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *SessionFilter) Validate() error {
	for _, p := range f.Phase {
		if !p.IsValid() {
			return domain.NewValidationError("phase", "unknown session phase: "+string(p))
		}
	}

	// Apply defaults
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	return nil
}
