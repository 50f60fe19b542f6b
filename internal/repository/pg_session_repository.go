package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/medical-research-service/internal/domain"
)

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool, *database.DB).
// Used by Update to automatically wrap SELECT FOR UPDATE + UPDATE in a transaction
// when the underlying DBTX is a pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Compile-time interface verification.
var _ SessionRepository = (*PgSessionRepository)(nil)

// PgSessionRepository is a PostgreSQL implementation of SessionRepository.
type PgSessionRepository struct {
	db DBTX
}

// NewPgSessionRepository creates a new PostgreSQL session repository.
func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

const sessionColumns = `id, query, mode, max_results, phase, progress,
		planning_steps, active_agents, tool_executions, error_message,
		created_at, started_at, completed_at`

// Create inserts a new research session.
func (r *PgSessionRepository) Create(ctx context.Context, session *domain.ResearchSession) error {
	if session == nil {
		return domain.NewValidationError("session", "session cannot be nil")
	}
	if session.ID == uuid.Nil {
		return domain.NewValidationError("id", "session ID is required")
	}
	if err := session.Query.Validate(); err != nil {
		return err
	}
	if !session.Phase.IsValid() {
		return domain.NewValidationError("phase", "unknown session phase: "+string(session.Phase))
	}

	queryJSON, err := json.Marshal(session.Query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	stepsJSON, err := json.Marshal(session.PlanningSteps)
	if err != nil {
		return fmt.Errorf("failed to marshal planning steps: %w", err)
	}

	agentsJSON, err := json.Marshal(session.ActiveAgents)
	if err != nil {
		return fmt.Errorf("failed to marshal active agents: %w", err)
	}

	executionsJSON, err := json.Marshal(session.ToolExecutions)
	if err != nil {
		return fmt.Errorf("failed to marshal tool executions: %w", err)
	}

	query := `
		INSERT INTO research_sessions (
			id, query, mode, max_results, phase, progress,
			planning_steps, active_agents, tool_executions, error_message,
			created_at, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13
		)`

	_, err = r.db.Exec(ctx, query,
		session.ID, queryJSON, session.Mode, session.MaxResults, session.Phase, session.Progress,
		stepsJSON, agentsJSON, executionsJSON, nullString(session.ErrorMessage),
		session.CreatedAt, session.StartedAt, session.CompletedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("session", session.ID.String())
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a research session by its ID.
func (r *PgSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM research_sessions
		WHERE id = $1`, sessionColumns)

	row := r.db.QueryRow(ctx, query, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("session", id.String())
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// Update performs an optimistic update on a session using SELECT FOR UPDATE.
//
// If the underlying DBTX supports Begin (i.e., it's a pool, not already a
// transaction), the SELECT FOR UPDATE + UPDATE is wrapped in an explicit
// transaction to prevent lost updates. Callers may provide their own
// transaction if they need to include additional operations in the same
// atomic unit.
func (r *PgSessionRepository) Update(ctx context.Context, id uuid.UUID, fn func(*domain.ResearchSession) error) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for update: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgSessionRepository{db: tx}
		if err := txRepo.updateInTx(ctx, id, fn); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	// Already running within a transaction, execute directly.
	return r.updateInTx(ctx, id, fn)
}

// updateInTx performs the actual SELECT FOR UPDATE + UPDATE within the current DBTX.
// This must be called within a transaction for correct row-level locking.
func (r *PgSessionRepository) updateInTx(ctx context.Context, id uuid.UUID, fn func(*domain.ResearchSession) error) error {
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM research_sessions
		WHERE id = $1
		FOR UPDATE`, sessionColumns)

	rows, err := r.db.Query(ctx, selectQuery, id)
	if err != nil {
		return fmt.Errorf("failed to query session for update: %w", err)
	}

	session, err := scanSessionRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("session", id.String())
		}
		return fmt.Errorf("failed to scan session: %w", err)
	}

	// Apply the update function
	if err := fn(session); err != nil {
		return err
	}

	stepsJSON, err := json.Marshal(session.PlanningSteps)
	if err != nil {
		return fmt.Errorf("failed to marshal planning steps: %w", err)
	}

	agentsJSON, err := json.Marshal(session.ActiveAgents)
	if err != nil {
		return fmt.Errorf("failed to marshal active agents: %w", err)
	}

	executionsJSON, err := json.Marshal(session.ToolExecutions)
	if err != nil {
		return fmt.Errorf("failed to marshal tool executions: %w", err)
	}

	updateQuery := `
		UPDATE research_sessions SET
			phase = $1,
			progress = $2,
			planning_steps = $3,
			active_agents = $4,
			tool_executions = $5,
			error_message = $6,
			started_at = $7,
			completed_at = $8
		WHERE id = $9`

	_, err = r.db.Exec(ctx, updateQuery,
		session.Phase,
		session.Progress,
		stepsJSON,
		agentsJSON,
		executionsJSON,
		nullString(session.ErrorMessage),
		session.StartedAt,
		session.CompletedAt,
		id,
	)

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// UpdatePhase transitions a session to a new phase, enforcing the phase machine.
func (r *PgSessionRepository) UpdatePhase(ctx context.Context, id uuid.UUID, phase domain.SessionPhase, errorMsg string) error {
	return r.Update(ctx, id, func(session *domain.ResearchSession) error {
		if !session.Phase.CanTransitionTo(phase) {
			return domain.NewInvalidTransitionError(session.Phase, phase)
		}

		session.Phase = phase

		// Progress is monotonically non-decreasing within a session.
		if baseline := phase.Progress(); baseline > session.Progress {
			session.Progress = baseline
		}

		if phase == domain.PhaseFailed {
			session.ErrorMessage = errorMsg
		}

		now := time.Now().UTC()
		if phase == domain.PhasePlanning && session.StartedAt == nil {
			session.StartedAt = &now
		}
		if phase.IsTerminal() && session.CompletedAt == nil {
			session.CompletedAt = &now
		}

		return nil
	})
}

// List retrieves research sessions matching the filter criteria.
func (r *PgSessionRepository) List(ctx context.Context, filter SessionFilter) ([]*domain.ResearchSession, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIndex := 1

	if len(filter.Phase) > 0 {
		placeholders := make([]string, len(filter.Phase))
		for i, p := range filter.Phase {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, p)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("phase IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.Mode != "" {
		conditions = append(conditions, fmt.Sprintf("mode = $%d", argIndex))
		args = append(args, filter.Mode)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM research_sessions WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM research_sessions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		sessionColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*domain.ResearchSession, 0, filter.Limit)
	for rows.Next() {
		session, err := scanSessionFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, totalCount, nil
}

// Delete removes a session. Results are removed by the cascading foreign key.
func (r *PgSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, "DELETE FROM research_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("session", id.String())
	}

	return nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// sessionScanDest holds the destination pointers for scanning a ResearchSession row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type sessionScanDest struct {
	session        domain.ResearchSession
	queryJSON      []byte
	stepsJSON      []byte
	agentsJSON     []byte
	executionsJSON []byte
	errorMessage   *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *sessionScanDest) destinations() []interface{} {
	return []interface{}{
		&d.session.ID, &d.queryJSON, &d.session.Mode, &d.session.MaxResults, &d.session.Phase, &d.session.Progress,
		&d.stepsJSON, &d.agentsJSON, &d.executionsJSON, &d.errorMessage,
		&d.session.CreatedAt, &d.session.StartedAt, &d.session.CompletedAt,
	}
}

// finalize performs post-scan processing: sets nullable fields and unmarshals JSON.
func (d *sessionScanDest) finalize() (*domain.ResearchSession, error) {
	if d.errorMessage != nil {
		d.session.ErrorMessage = *d.errorMessage
	}

	if len(d.queryJSON) > 0 {
		if err := json.Unmarshal(d.queryJSON, &d.session.Query); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query: %w", err)
		}
	}

	if len(d.stepsJSON) > 0 {
		if err := json.Unmarshal(d.stepsJSON, &d.session.PlanningSteps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal planning steps: %w", err)
		}
	}

	if len(d.agentsJSON) > 0 {
		if err := json.Unmarshal(d.agentsJSON, &d.session.ActiveAgents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal active agents: %w", err)
		}
	}

	if len(d.executionsJSON) > 0 {
		if err := json.Unmarshal(d.executionsJSON, &d.session.ToolExecutions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool executions: %w", err)
		}
	}

	return &d.session, nil
}

// scanSession scans a single row into a ResearchSession.
func scanSession(row pgx.Row) (*domain.ResearchSession, error) {
	var dest sessionScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanSessionRows scans a single row from pgx.Rows into a ResearchSession.
// This is used with SELECT FOR UPDATE which returns Rows instead of Row.
func scanSessionRows(rows pgx.Rows) (*domain.ResearchSession, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	return scanSessionFromRows(rows)
}

// scanSessionFromRows scans the current row from pgx.Rows into a ResearchSession.
func scanSessionFromRows(rows pgx.Rows) (*domain.ResearchSession, error) {
	var dest sessionScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
