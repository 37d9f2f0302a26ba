package rabbitmq_producer

import (
	"testing"

	"property-sync-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestPublisherConfig_Validate(t *testing.T) {
	base := rabbitmq_common.Config{URL: "amqp://localhost"}

	assert.Error(t, PublisherConfig{}.validate())
	assert.NoError(t, PublisherConfig{Config: base}.validate())
	assert.NoError(t, PublisherConfig{Config: base, ExchangeName: "editor_exchange", ExchangeType: "direct", DeclareExchangeIfMissing: true}.validate())
	assert.Error(t, PublisherConfig{Config: base, ExchangeName: "editor_exchange", DeclareExchangeIfMissing: true}.validate())
}

func TestNewJSONPublishing(t *testing.T) {
	msg := NewJSONPublishing([]byte(`{}`), amqp.Table{"x-trace-id": "t"})
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "t", msg.Headers["x-trace-id"])
	assert.False(t, msg.Timestamp.IsZero())
}
