package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookstore-core/internal/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// publisher is the subset of *amqp.Channel the sink uses.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes notifications as persistent JSON messages to a topic
// exchange with routing key "admin.<kind>".
type AMQPSink struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	now      func() time.Time
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	logger.L().Info("RabbitMQ notification sink connected", zap.String("exchange", exchange))

	return &AMQPSink{conn: conn, channel: ch, exchange: exchange, now: time.Now}, nil
}

func newAMQPSink(ch publisher, exchange string) *AMQPSink {
	return &AMQPSink{channel: ch, exchange: exchange, now: time.Now}
}

func RoutingKey(k Kind) string {
	return "admin." + string(k)
}

func (s *AMQPSink) Notify(ctx context.Context, n Notification) error {
	if n.At.IsZero() {
		n.At = s.now().UTC()
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = s.channel.Publish(
		s.exchange,
		RoutingKey(n.Kind),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     n.At,
			CorrelationId: logger.RequestIDFrom(ctx),
		})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	logger.FromCtx(ctx).Debug("notification published",
		zap.String("exchange", s.exchange),
		zap.String("kind", string(n.Kind)),
	)
	return nil
}

func (s *AMQPSink) Close() error {
	var errs []error
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing RabbitMQ sink: %v", errs)
	}
	return nil
}
