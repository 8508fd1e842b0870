package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"messenger-service/internal/observability"
)

// Publisher publishes domain events to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher, or a noop publisher when
// AMQP is disabled or unreachable. The service never refuses to start
// because the broker is down.
func NewPublisher(amqpURL, exchange string, log *zap.Logger) Publisher {
	if amqpURL == "" {
		log.Info("rabbitmq disabled, using noop publisher")
		return noopPublisher{log: log}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn("rabbitmq unreachable, using noop publisher", zap.Error(err))
		return noopPublisher{log: log}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("rabbitmq channel failed, using noop publisher", zap.Error(err))
		_ = conn.Close()
		return noopPublisher{log: log}
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Warn("rabbitmq exchange declare failed, using noop publisher", zap.Error(err))
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{log: log}
	}

	log.Info("rabbitmq connected", zap.String("exchange", exchange))
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError()
		p.log.Error("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	log *zap.Logger
}

func (n noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	n.log.Debug("noop publish", zap.String("routing_key", routingKey))
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
