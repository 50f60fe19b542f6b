package outbox

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/helixir/medical-research-service/internal/config"
)

func TestNewKafkaWriter(t *testing.T) {
	writer := NewKafkaWriter(config.KafkaConfig{
		Brokers:      []string{"broker-1:9092", "broker-2:9092"},
		Topic:        "events.outbox.medical_research_service",
		BatchSize:    50,
		BatchTimeout: 20 * time.Millisecond,
	})

	assert.Equal(t, "events.outbox.medical_research_service", writer.Topic)
	assert.Equal(t, 50, writer.BatchSize)
	assert.Equal(t, 20*time.Millisecond, writer.BatchTimeout)
}

func TestNewRelay_Defaults(t *testing.T) {
	relay := NewRelay(nil, nil, config.OutboxConfig{}, zerolog.Nop())

	assert.Equal(t, time.Second, relay.pollInterval)
	assert.Equal(t, 100, relay.batchSize)
}
