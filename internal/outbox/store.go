package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/repository"
)

// AggregateTypeSession is the aggregate type for research session events.
const AggregateTypeSession = "research_session"

// Store writes and reads outbox events. Append is meant to run inside the
// same transaction as the state change it describes: pass the pgx.Tx as the
// DBTX so the event and the change commit atomically.
type Store struct {
	db repository.DBTX
}

// NewStore creates a new outbox store.
func NewStore(db repository.DBTX) *Store {
	return &Store{db: db}
}

// Append inserts an outbox event.
func (s *Store) Append(ctx context.Context, event *domain.OutboxEvent) error {
	if event == nil {
		return domain.NewValidationError("event", "event cannot be nil")
	}
	if event.EventType == "" {
		return domain.NewValidationError("event_type", "event type is required")
	}
	if event.AggregateID == "" {
		return domain.NewValidationError("aggregate_id", "aggregate ID is required")
	}

	query := `
		INSERT INTO outbox_events (
			event_id, event_version, aggregate_id, aggregate_type,
			event_type, payload, created_at, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, query,
		event.EventID, event.EventVersion, event.AggregateID, event.AggregateType,
		event.EventType, event.Payload, event.CreatedAt, event.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}

	return nil
}

// FetchUnpublished returns up to limit unpublished events, oldest first.
// Rows are locked with FOR UPDATE SKIP LOCKED so concurrent relays never
// deliver the same event twice.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, event_version, aggregate_id, aggregate_type,
			event_type, payload, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		if err := rows.Scan(
			&event.EventID, &event.EventVersion, &event.AggregateID, &event.AggregateType,
			&event.EventType, &event.Payload, &event.CreatedAt, &event.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished stamps the given events with a publish timestamp.
func (s *Store) MarkPublished(ctx context.Context, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}

	query := `
		UPDATE outbox_events
		SET published_at = $1
		WHERE event_id = ANY($2)`

	_, err := s.db.Exec(ctx, query, time.Now().UTC(), eventIDs)
	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}

	return nil
}
