package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"property-sync-service/internal/constants"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/contracts"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// PropagationReporterAdapter публикует PropagationCompletedEvent после каждого каскада
type PropagationReporterAdapter struct {
	producer   publisher
	routingKey string
	now        func() time.Time
}

func NewPropagationReporterAdapter(producer *rabbitmq_producer.Publisher, routingKey string) (*PropagationReporterAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	return newPropagationReporterAdapter(producer, routingKey)
}

func newPropagationReporterAdapter(producer publisher, routingKey string) (*PropagationReporterAdapter, error) {
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &PropagationReporterAdapter{
		producer:   producer,
		routingKey: routingKey,
		now:        time.Now,
	}, nil
}

func (a *PropagationReporterAdapter) ReportPropagation(ctx context.Context, summary domain.PropagationSummary) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "PropagationReporterAdapter",
		"routing_key": a.routingKey,
		"job_id":      summary.JobID,
	})

	body, err := json.Marshal(newPropagationCompletedEvent(summary, a.now()))
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to marshal report: %w", err)
	}
	// отчет, не прошедший собственную схему, потребители все равно отбросят
	if err := contracts.ValidateEvent(constants.EventPropagationCompleted, constants.EventVersionV1, body); err != nil {
		adapterLogger.Error("Report does not match its contract", err, nil)
		return err
	}

	headers := amqp.Table{
		headerEventType:    constants.EventPropagationCompleted,
		headerEventVersion: constants.EventVersionV1,
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		headers[headerTraceID] = traceID
	}

	// Устанавливаем таймаут на операцию публикации, если контекст его не предоставляет
	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, a.routingKey, rabbitmq_producer.NewJSONPublishing(body, headers)); err != nil {
		adapterLogger.Error("Failed to publish propagation report", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish report for job %s: %w", summary.JobID, err)
	}

	adapterLogger.Info("Successfully published propagation report", nil)
	return nil
}
