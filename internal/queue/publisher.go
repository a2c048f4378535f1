package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends domain events to RabbitMQ. It dials per publish, which keeps
// it free of connection state; event volume is one message per booking or
// cancelled showtime.
type Publisher struct {
	url         string
	dialTimeout time.Duration
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, dialTimeout time.Duration) *Publisher {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return &Publisher{url: url, dialTimeout: dialTimeout}
}

// TicketBooked publishes ev to the ticket.booked queue.
func (p *Publisher) TicketBooked(ctx context.Context, ev TicketBookedEvent) error {
	return p.publish(ctx, TicketBookedQueue, ev)
}

// ShowtimeCancelled publishes ev to the showtime.cancelled queue.
func (p *Publisher) ShowtimeCancelled(ctx context.Context, ev ShowtimeCancelledEvent) error {
	return p.publish(ctx, ShowtimeCancelledQueue, ev)
}

// publish declares the durable queue and sends v as a persistent JSON message
// through the default exchange.
func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	slog.Debug("event published", "queue", queue)
	return nil
}
