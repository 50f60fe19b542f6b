package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for outbox events.
const (
	EventTypeSessionCreated   = "session.created"
	EventTypeSessionStarted   = "session.started"
	EventTypeSessionCompleted = "session.completed"
	EventTypeSessionFailed    = "session.failed"
	EventTypeSessionCancelled = "session.cancelled"
	EventTypeSearchCompleted  = "session.search_completed"
)

// OutboxEvent represents an event to be published via the outbox pattern.
// Events are written in the same transaction as the state change they
// describe and relayed to the broker asynchronously.
type OutboxEvent struct {
	EventID       uuid.UUID
	EventVersion  int
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewOutboxEvent creates a new outbox event with the given parameters.
// The payload is JSON-serialized automatically.
func NewOutboxEvent(eventType, aggregateID, aggregateType string, payload interface{}) (*OutboxEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:       uuid.New(),
		EventVersion:  1,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payloadBytes,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// SessionCreatedPayload is the payload for session.created events.
type SessionCreatedPayload struct {
	SessionID uuid.UUID      `json:"session_id"`
	Framework QueryFramework `json:"framework"`
	Mode      SessionMode    `json:"mode"`
}

// SessionCompletedPayload is the payload for session.completed events.
type SessionCompletedPayload struct {
	SessionID   uuid.UUID     `json:"session_id"`
	ResultCount int           `json:"result_count"`
	Duration    time.Duration `json:"duration_ns"`
}

// SessionFailedPayload is the payload for session.failed events.
type SessionFailedPayload struct {
	SessionID uuid.UUID    `json:"session_id"`
	Phase     SessionPhase `json:"phase"`
	Error     string       `json:"error"`
}

// SessionCancelledPayload is the payload for session.cancelled events.
type SessionCancelledPayload struct {
	SessionID uuid.UUID    `json:"session_id"`
	Phase     SessionPhase `json:"phase"`
}

// SearchCompletedPayload is the payload for session.search_completed events.
type SearchCompletedPayload struct {
	SessionID   uuid.UUID     `json:"session_id"`
	Source      SourceType    `json:"source"`
	ResultCount int           `json:"result_count"`
	Duration    time.Duration `json:"duration_ns"`
}
