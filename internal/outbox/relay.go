package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/medical-research-service/internal/config"
	"github.com/helixir/medical-research-service/internal/database"
)

// MessageWriter publishes messages to a broker. *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter builds a kafka writer from configuration.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
}

// relayLockKey is the advisory lock key serializing relay batches. One
// drainer at a time keeps the per-aggregate ordering of keyed messages
// intact when multiple service instances run the relay.
const relayLockKey int64 = 0x6f7574626f78 // "outbox"

// Relay polls the outbox table and publishes unpublished events to Kafka.
// Events are keyed by aggregate ID so all events of one session land on the
// same partition in order. Delivery is at-least-once: the publish happens
// inside the same transaction that marks rows published, so a crash between
// publish and commit re-delivers.
type Relay struct {
	db           *database.DB
	writer       MessageWriter
	logger       zerolog.Logger
	pollInterval time.Duration
	batchSize    int
}

// NewRelay creates a relay with the given poll settings.
func NewRelay(db *database.DB, writer MessageWriter, cfg config.OutboxConfig, logger zerolog.Logger) *Relay {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Relay{
		db:           db,
		writer:       writer,
		logger:       logger.With().Str("component", "outbox_relay").Logger(),
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Run starts the relay loop. Blocks until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("poll_interval", r.pollInterval).
		Int("batch_size", r.batchSize).
		Msg("starting outbox relay")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped via context cancellation")
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error().Err(err).Msg("failed to relay outbox batch")
			}
		}
	}
}

// relayBatch publishes one batch of unpublished events.
func (r *Relay) relayBatch(ctx context.Context) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		acquired, err := r.db.TryXactAdvisoryLock(ctx, tx, relayLockKey)
		if err != nil {
			return err
		}
		if !acquired {
			// Another instance is draining this cycle.
			return nil
		}

		store := NewStore(tx)

		events, err := store.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		messages := make([]kafka.Message, 0, len(events))
		ids := make([]uuid.UUID, 0, len(events))
		for _, event := range events {
			messages = append(messages, kafka.Message{
				Key:   []byte(event.AggregateID),
				Value: event.Payload,
				Headers: []kafka.Header{
					{Key: "event_id", Value: []byte(event.EventID.String())},
					{Key: "event_type", Value: []byte(event.EventType)},
					{Key: "aggregate_type", Value: []byte(event.AggregateType)},
				},
			})
			ids = append(ids, event.EventID)
		}

		if err := r.writer.WriteMessages(ctx, messages...); err != nil {
			return err
		}

		if err := store.MarkPublished(ctx, ids); err != nil {
			return err
		}

		r.logger.Debug().Int("count", len(events)).Msg("relayed outbox events")
		return nil
	})
}
