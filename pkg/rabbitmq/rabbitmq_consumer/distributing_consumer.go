package rabbitmq_consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"property-sync-service/pkg/rabbitmq/rabbitmq_common"
	"property-sync-service/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. ack/nack/повторы решает пакет.
type MessageHandler func(delivery amqp.Delivery) error

// DistributingConsumer раздает сообщения обработчикам в горутинах,
// не больше MaxInFlight одновременно.
type DistributingConsumer struct {
	config     ConsumerConfig
	handler    MessageHandler
	connection *amqp.Connection
	channel    *amqp.Channel
	parking    *rabbitmq_producer.Publisher

	slots chan struct{}
	wg    sync.WaitGroup

	Logger rabbitmq_common.Logger
}

func NewDistributingConsumer(cfg ConsumerConfig, handler MessageHandler, manager *rabbitmq_common.ConnectionManager) (*DistributingConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("distributing consumer: message handler is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("distributing consumer: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	conn, ch, err := manager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("distributing consumer: failed to get channel: %w", err)
	}
	if err := declareTopology(ch, cfg, logger); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("distributing consumer: %w", err)
	}

	c := &DistributingConsumer{
		config:     cfg,
		handler:    handler,
		connection: conn,
		channel:    ch,
		slots:      make(chan struct{}, cfg.inFlight()),
		Logger:     logger,
	}

	if cfg.EnableRetryMechanism {
		c.parking, err = rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
			Config:       cfg.Config,
			ExchangeName: cfg.FinalDLXExchange,
			Logger:       logger,
		}, manager)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("distributing consumer: failed to create final DLX publisher: %w", err)
		}
	}

	return c, nil
}

// StartConsuming блокируется до отмены ctx (nil) или закрытия соединения (ошибка)
func (c *DistributingConsumer) StartConsuming(ctx context.Context) error {
	if c.channel == nil || c.connection == nil || c.connection.IsClosed() {
		return fmt.Errorf("distributing consumer: not connected")
	}

	msgs, err := c.channel.Consume(c.config.QueueName, c.config.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("distributing consumer: failed to consume from '%s': %w", c.config.QueueName, err)
	}
	c.Logger.Info("Waiting for messages", "queue", c.config.QueueName)

	closed := c.connection.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("Context cancelled, consumer stops", "queue", c.config.QueueName)
			return nil

		case amqpErr := <-closed:
			if amqpErr == nil {
				return nil
			}
			c.Logger.Error(amqpErr, "Connection closed under consumer", "queue", c.config.QueueName)
			return amqpErr

		case d, ok := <-msgs:
			if !ok {
				c.Logger.Warn("Deliveries channel closed", "queue", c.config.QueueName)
				return nil
			}
			select {
			case c.slots <- struct{}{}:
			case <-ctx.Done():
				// сообщение вернется в очередь при закрытии канала
				return nil
			}
			c.wg.Add(1)
			go func(delivery amqp.Delivery) {
				defer func() {
					<-c.slots
					c.wg.Done()
				}()
				c.process(delivery)
			}(d)
		}
	}
}

func (c *DistributingConsumer) process(d amqp.Delivery) {
	err := c.handler(d)
	if err == nil {
		_ = d.Ack(false)
		c.Logger.Debug("Message acked", "delivery_tag", d.DeliveryTag)
		return
	}

	deaths := deathCount(d.Headers, c.config.QueueName)
	action := decideOnFailure(c.config, deaths)
	c.Logger.Error(err, "Handler failed", "delivery_tag", d.DeliveryTag, "deaths", deaths, "action", action.String())

	if action != actionPark {
		_ = d.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	perr := c.parking.Publish(ctx, c.config.FinalDLQRoutingKey, amqp.Publishing{
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      d.Headers,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	})
	if perr != nil {
		// не смогли отложить - пусть идет на еще один круг
		c.Logger.Error(perr, "Failed to publish to final DLX", "delivery_tag", d.DeliveryTag)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close ждет завершения обработчиков и закрывает каналы
func (c *DistributingConsumer) Close() error {
	c.wg.Wait()

	var firstErr error
	if c.parking != nil {
		if err := c.parking.Close(); err != nil {
			firstErr = err
		}
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.channel = nil
	}
	c.Logger.Info("Consumer closed", "queue", c.config.QueueName)
	return firstErr
}
