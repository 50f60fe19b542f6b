// Package outbox implements the transactional outbox pattern for the medical
// research service.
//
// Session lifecycle events are appended to the outbox_events table inside the
// same transaction as the state change they describe, then relayed to Kafka
// asynchronously by the Relay. This guarantees that an event is published if
// and only if the state change committed.
//
// # Usage
//
// Append inside a transaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    if err := sessionRepo.Create(ctx, session); err != nil {
//	        return err
//	    }
//	    event, _ := domain.NewOutboxEvent(domain.EventTypeSessionCreated,
//	        session.ID.String(), outbox.AggregateTypeSession, payload)
//	    return outbox.NewStore(tx).Append(ctx, event)
//	})
//
// Run the relay at startup:
//
//	relay := outbox.NewRelay(db, outbox.NewKafkaWriter(cfg.Kafka), cfg.Outbox, logger)
//	go relay.Run(ctx)
//
// Delivery is at-least-once; consumers must deduplicate on the event_id header.
package outbox
