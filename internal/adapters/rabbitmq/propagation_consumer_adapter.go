package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"property-sync-service/internal/constants"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/contracts"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/port/usecases_port"
	"property-sync-service/pkg/rabbitmq/rabbitmq_common"
	"property-sync-service/pkg/rabbitmq/rabbitmq_consumer"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PropagationConsumerAdapter слушает команды каскада и запускает use case
type PropagationConsumerAdapter struct {
	consumer    *rabbitmq_consumer.DistributingConsumer
	propagateUC usecases_port.PropagateProjectPort
	logger      port.LoggerPort
}

func NewPropagationConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	propagateUC usecases_port.PropagateProjectPort,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*PropagationConsumerAdapter, error) {

	adapter := &PropagationConsumerAdapter{
		propagateUC: propagateUC,
		logger:      logger,
	}

	// Создаем логгер для pkg-уровня с контекстом нашего компонента
	pkgLogger := logger.WithFields(port.Fields{"component": "rabbitmq_distributing_consumer", "consumer_tag": consumerCfg.ConsumerTag})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewDistributingConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for propagation commands: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

// messageHandler: nil - сообщение обработано или повторять бессмысленно (ack),
// ошибка - временный сбой, сообщение уйдет на повтор
func (a *PropagationConsumerAdapter) messageHandler(d amqp.Delivery) error {
	traceID := rabbitmq_common.HeaderString(d.Headers, headerTraceID)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	ctx, tracedLogger := contextkeys.WithTrace(context.Background(), a.logger, traceID)
	msgLogger := tracedLogger.WithFields(port.Fields{"delivery_tag": d.DeliveryTag})

	eventType := rabbitmq_common.HeaderString(d.Headers, headerEventType)
	eventVersion := rabbitmq_common.HeaderString(d.Headers, headerEventVersion)
	if eventType == "" {
		eventType = constants.EventPropagateProjectCommand
	}
	if eventVersion == "" {
		eventVersion = constants.EventVersionV1
	}
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		msgLogger.Error("Message failed contract validation, dropping", err, port.Fields{
			"event_type":    eventType,
			"event_version": eventVersion,
		})
		return nil
	}

	var dto PropagateProjectCommandDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		msgLogger.Error("Error unmarshalling propagation command, dropping", err, nil)
		return nil
	}

	fields, err := domain.FieldValuesFromMap(dto.Fields)
	if err != nil {
		msgLogger.Error("Command contains unknown fields, dropping", err, nil)
		return nil
	}

	jobID := dto.JobID
	if jobID == "" {
		jobID = traceID
	}
	cmdLogger := msgLogger.WithFields(port.Fields{"job_id": jobID, "parent_id": dto.ParentID})
	ctx = contextkeys.ContextWithLogger(ctx, cmdLogger)

	cmdLogger.Info("Received propagation command", port.Fields{"fields": len(fields)})

	_, err = a.propagateUC.Propagate(ctx, domain.PropagateCommand{
		JobID:    jobID,
		ParentID: domain.RecordID(dto.ParentID),
		Fields:   fields,
		Actor:    domain.Actor{ID: dto.ActorID, Name: dto.ActorName},
	})
	if err != nil {
		if isPermanent(err) {
			cmdLogger.Error("Propagation command rejected", err, nil)
			return nil
		}
		cmdLogger.Error("Propagation use case failed", err, nil)
		return err // Возвращаем ошибку для retry
	}
	return nil
}

// isPermanent - ошибки в самой команде, повтор ничего не изменит
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrRecordNotFound) ||
		errors.Is(err, domain.ErrFieldNotPropagatable) ||
		errors.Is(err, domain.ErrUnknownField) ||
		errors.Is(err, domain.ErrInvalidRecord)
}

// Start реализует EventListenerPort
func (a *PropagationConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close реализует EventListenerPort
func (a *PropagationConsumerAdapter) Close() error {
	return a.consumer.Close()
}
