package rabbitmq_consumer

import (
	"fmt"

	"property-sync-service/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig - очередь, привязка к обменнику, QoS и контур повторов
type ConsumerConfig struct {
	rabbitmq_common.Config

	QueueName    string
	DeclareQueue bool
	DurableQueue bool
	QueueArgs    amqp.Table

	// пустое имя - без привязки
	ExchangeNameForBind    string
	ExchangeTypeForBind    string
	DeclareExchangeForBind bool
	RoutingKeyForBind      string

	PrefetchCount int
	ConsumerTag   string
	// MaxInFlight - сколько сообщений обрабатывается одновременно (0 - PrefetchCount или 1)
	MaxInFlight int

	// Контур повторов: основная очередь -> retry exchange -> wait-очередь с TTL ->
	// обратно в основной обменник; после MaxRetries - финальный DLX/DLQ.
	EnableRetryMechanism bool
	RetryExchange        string
	RetryQueue           string
	RetryTTL             int // мс
	FinalDLXExchange     string
	FinalDLQ             string
	FinalDLQRoutingKey   string
	MaxRetries           int

	Logger rabbitmq_common.Logger
}

func (c ConsumerConfig) validate() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid base config: %w", err)
	}
	if c.QueueName == "" {
		return fmt.Errorf("queue name is required")
	}
	if c.DeclareExchangeForBind && c.ExchangeTypeForBind == "" {
		return fmt.Errorf("exchange type is required when declaring an exchange for binding")
	}
	if c.EnableRetryMechanism {
		if c.RetryExchange == "" || c.RetryQueue == "" || c.FinalDLXExchange == "" || c.FinalDLQ == "" {
			return fmt.Errorf("retry mechanism requires retry exchange/queue and final DLX/DLQ names")
		}
		if c.RetryTTL <= 0 {
			return fmt.Errorf("retry TTL must be positive")
		}
		if c.ExchangeNameForBind == "" {
			return fmt.Errorf("retry mechanism needs an exchange to route messages back to")
		}
	}
	return nil
}

func (c ConsumerConfig) inFlight() int {
	switch {
	case c.MaxInFlight > 0:
		return c.MaxInFlight
	case c.PrefetchCount > 0:
		return c.PrefetchCount
	}
	return 1
}

// mainQueueArgs - аргументы основной очереди; при повторах мертвые сообщения уходят в retry exchange
func (c ConsumerConfig) mainQueueArgs() amqp.Table {
	args := amqp.Table{}
	for k, v := range c.QueueArgs {
		args[k] = v
	}
	if c.EnableRetryMechanism {
		args["x-dead-letter-exchange"] = c.RetryExchange
	}
	return args
}

// declareTopology объявляет очереди, обменники и привязки из конфигурации
func declareTopology(ch *amqp.Channel, c ConsumerConfig, logger rabbitmq_common.Logger) error {
	if c.PrefetchCount > 0 {
		if err := ch.Qos(c.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	if c.DeclareExchangeForBind {
		logger.Debug("Declaring exchange", "name", c.ExchangeNameForBind, "type", c.ExchangeTypeForBind)
		if err := ch.ExchangeDeclare(c.ExchangeNameForBind, c.ExchangeTypeForBind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange '%s': %w", c.ExchangeNameForBind, err)
		}
	}

	if c.DeclareQueue {
		logger.Debug("Declaring queue", "name", c.QueueName, "durable", c.DurableQueue)
		if _, err := ch.QueueDeclare(c.QueueName, c.DurableQueue, false, false, false, c.mainQueueArgs()); err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", c.QueueName, err)
		}
	}

	if c.ExchangeNameForBind != "" {
		logger.Debug("Binding queue", "queue", c.QueueName, "exchange", c.ExchangeNameForBind, "routing_key", c.RoutingKeyForBind)
		if err := ch.QueueBind(c.QueueName, c.RoutingKeyForBind, c.ExchangeNameForBind, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue '%s': %w", c.QueueName, err)
		}
	}

	if !c.EnableRetryMechanism {
		return nil
	}

	if err := ch.ExchangeDeclare(c.FinalDLXExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(c.FinalDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare final DLQ: %w", err)
	}
	if err := ch.QueueBind(c.FinalDLQ, c.FinalDLQRoutingKey, c.FinalDLXExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind final DLQ: %w", err)
	}

	if err := ch.ExchangeDeclare(c.RetryExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare retry exchange: %w", err)
	}
	// routing key сохраняется при dead-lettering, поэтому сообщение вернется в ту же очередь
	if _, err := ch.QueueDeclare(c.RetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":          int32(c.RetryTTL),
		"x-dead-letter-exchange": c.ExchangeNameForBind,
	}); err != nil {
		return fmt.Errorf("failed to declare retry-wait queue: %w", err)
	}
	if err := ch.QueueBind(c.RetryQueue, "", c.RetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind retry-wait queue: %w", err)
	}

	logger.Debug("Retry topology declared", "retry_queue", c.RetryQueue, "final_dlq", c.FinalDLQ)
	return nil
}
