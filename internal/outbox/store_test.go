package outbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/medical-research-service/internal/domain"
)

func newTestEvent(t *testing.T) *domain.OutboxEvent {
	t.Helper()
	event, err := domain.NewOutboxEvent(
		domain.EventTypeSessionCreated,
		uuid.NewString(),
		AggregateTypeSession,
		domain.SessionCreatedPayload{SessionID: uuid.New(), Framework: domain.FrameworkPICO, Mode: domain.ModeQuick},
	)
	require.NoError(t, err)
	return event
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("appends event", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)
		event := newTestEvent(t)

		mock.ExpectExec("INSERT INTO outbox_events").
			WithArgs(
				event.EventID, event.EventVersion, event.AggregateID, event.AggregateType,
				event.EventType, event.Payload, event.CreatedAt, nil,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = store.Append(ctx, event)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil event", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)
		err = store.Append(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects event without type", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)
		event := newTestEvent(t)
		event.EventType = ""

		err = store.Append(ctx, event)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestStore_FetchUnpublished(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches unpublished events oldest first", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)
		event := newTestEvent(t)

		rows := pgxmock.NewRows([]string{
			"event_id", "event_version", "aggregate_id", "aggregate_type",
			"event_type", "payload", "created_at", "published_at",
		}).AddRow(
			event.EventID, event.EventVersion, event.AggregateID, event.AggregateType,
			event.EventType, event.Payload, event.CreatedAt, nil,
		)

		mock.ExpectQuery("SELECT .* FROM outbox_events WHERE published_at IS NULL ORDER BY created_at ASC LIMIT \\$1 FOR UPDATE SKIP LOCKED").
			WithArgs(10).
			WillReturnRows(rows)

		events, err := store.FetchUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.EventID, events[0].EventID)
		assert.Equal(t, domain.EventTypeSessionCreated, events[0].EventType)
		assert.Nil(t, events[0].PublishedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("defaults limit when non-positive", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)

		mock.ExpectQuery("SELECT .* FROM outbox_events WHERE published_at IS NULL").
			WithArgs(100).
			WillReturnRows(pgxmock.NewRows([]string{
				"event_id", "event_version", "aggregate_id", "aggregate_type",
				"event_type", "payload", "created_at", "published_at",
			}))

		events, err := store.FetchUnpublished(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestStore_MarkPublished(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps events", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)
		ids := []uuid.UUID{uuid.New(), uuid.New()}

		mock.ExpectExec("UPDATE outbox_events SET published_at = \\$1 WHERE event_id = ANY\\(\\$2\\)").
			WithArgs(pgxmock.AnyArg(), ids).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))

		err = store.MarkPublished(ctx, ids)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no-op for empty slice", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		store := NewStore(mock)
		err = store.MarkPublished(ctx, nil)
		assert.NoError(t, err)
	})
}
