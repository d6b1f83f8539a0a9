// Package rabbit publishes normalized event envelopes to a durable RabbitMQ
// fanout exchange.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/parmenashp/felpsbot-backend/internal/eventsub"
	"github.com/parmenashp/felpsbot-backend/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Publisher owns an AMQP channel bound to a durable fanout exchange.
// Deliveries are marked persistent so the broker keeps them across restarts.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(rabbitURL, exchange string) (*Publisher, error) {
	slog.Info("Connecting to rabbitmq")

	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish sends the envelope to the fanout exchange. The routing key is
// empty: fanout exchanges ignore it.
func (p *Publisher) Publish(ctx context.Context, envelope eventsub.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		metrics.PublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		metrics.PublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish to exchange %q: %w", p.exchange, err)
	}

	metrics.PublishesTotal.WithLabelValues("success").Inc()
	return nil
}

// Ready reports whether the underlying connection is usable.
func (p *Publisher) Ready() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

// Close shuts down the channel and connection.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
