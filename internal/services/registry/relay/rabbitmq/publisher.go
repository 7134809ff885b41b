// Package rabbitmq publishes registry events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/didregistry/internal/services/registry/event"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange registry events are sent to.
	DefaultExchange = "did.registry"
	contentType     = "application/json"
	dialAttempts    = 5
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Publisher sends events with publisher confirms enabled.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// Dial connects to url, retrying with doubling waits, and declares exchange.
func Dial(ctx context.Context, url, exchange string, logf func(string, ...any)) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	var (
		conn *amqp.Connection
		err  error
	)
	wait := time.Second
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if attempt == dialAttempts {
			return nil, fmt.Errorf("dial amqp: %w", err)
		}
		logf("amqp dial attempt %d failed: %v; retrying in %v", attempt, err, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares a durable topic exchange on ch and puts the channel
// into confirm mode.
func NewPublisher(ch channel, exchange string) (*Publisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("amqp channel is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Exchange returns the exchange messages are published to.
func (p *Publisher) Exchange() string {
	return p.exchange
}

// Publish sends evt and waits for the broker to confirm it.
func (p *Publisher) Publish(ctx context.Context, evt event.Event) error {
	msg, err := Message(evt)
	if err != nil {
		return err
	}
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, evt.Kind.RoutingKey(), false, false, msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", evt.ID, err)
	}
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm %s: %w", evt.ID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", evt.ID)
	}
	return nil
}

// Close closes the channel and, when owned, the connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Message encodes evt as a persistent JSON message.
func Message(evt event.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", evt.ID, err)
	}
	return amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Type:         string(evt.Kind),
		Timestamp:    evt.OccurredAt,
		Headers: amqp.Table{
			"seq": int64(evt.Seq),
			"did": evt.DID,
		},
		Body: body,
	}, nil
}
