// Package messaging forwards in-process domain events to a RabbitMQ topic
// exchange so other services can react to lot and account changes.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"go-parking-directory/internal/event"
)

const publishTimeout = 5 * time.Second

type publisher interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
}

// Forwarder publishes every bus event to exchange with the event type as
// routing key.
type Forwarder struct {
	bus      event.Bus
	channel  publisher
	exchange string
	closers  []func() error
}

func NewForwarder(bus event.Bus, channel publisher, exchange string) *Forwarder {
	return &Forwarder{bus: bus, channel: channel, exchange: exchange}
}

// Dial connects to the broker, declares a durable topic exchange and returns
// a Forwarder publishing to it. Close releases the connection.
func Dial(url string, exchange string, bus event.Bus) (*Forwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	f := NewForwarder(bus, ch, exchange)
	f.closers = []func() error{ch.Close, conn.Close}
	return f, nil
}

// Run forwards events until ctx is cancelled. Publish failures are logged
// and the event is dropped.
func (f *Forwarder) Run(ctx context.Context) {
	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := f.forward(ctx, e); err != nil {
				slog.Warn("event not forwarded", "type", e.Type, "event_id", e.ID, "error", err)
			}
		}
	}
}

func (f *Forwarder) Close() error {
	var first error
	for _, closeFn := range f.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *Forwarder) forward(ctx context.Context, e event.Event) error {
	msg, err := publishing(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := f.channel.PublishWithContext(ctx, f.exchange, string(e.Type), false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", f.exchange, err)
	}
	return nil
}

func publishing(e event.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    ts,
		Body:         body,
	}, nil
}
