package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leihlokal/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const ExchangeKind = "topic"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder republishes record events to a RabbitMQ topic exchange
// with routing key record.<collection>.<kind>.
type AMQPForwarder struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *zerolog.Logger
}

func NewAMQPForwarder(url, exchange string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &AMQPForwarder{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func newForwarderWithChannel(ch amqpChannel, exchange string, logger *zerolog.Logger) *AMQPForwarder {
	return &AMQPForwarder{channel: ch, exchange: exchange, logger: logger}
}

func RoutingKey(event models.RecordEvent) string {
	return fmt.Sprintf("record.%s.%s", event.Collection, event.Kind)
}

// Forward publishes one event.
func (f *AMQPForwarder) Forward(ctx context.Context, event models.RecordEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := RoutingKey(event)
	if err := f.channel.PublishWithContext(ctx, f.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	f.logger.Debug().Str("exchange", f.exchange).Str("routing_key", key).Msg("record event forwarded")
	return nil
}

// Attach subscribes the forwarder to every collection on the bus.
func (f *AMQPForwarder) Attach(bus *Bus) func() {
	return bus.Subscribe(AllCollections, func(ctx context.Context, event models.RecordEvent) {
		if err := f.Forward(ctx, event); err != nil {
			f.logger.Error().Err(err).Str("collection", event.Collection).Msg("forward record event")
		}
	})
}

func (f *AMQPForwarder) Close() {
	if f.channel != nil {
		f.channel.Close()
	}
	if f.conn != nil {
		f.conn.Close()
	}
}
