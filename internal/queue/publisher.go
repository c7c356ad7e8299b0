package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to durable queues on the default exchange.  Each
// publish dials its own connection, so a broker outage only fails the
// publish and never the request that triggered it.
type Publisher struct {
	URL    string
	Logger *slog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{URL: url, Logger: logger}
}

// PublishPaymentSettled publishes ev to the payment.settled queue.
func (p *Publisher) PublishPaymentSettled(ctx context.Context, ev PaymentSettledEvent) error {
	return p.publish(ctx, PaymentSettledQueue, ev)
}

// PublishReconcile publishes req to the settlement.reconcile queue.
func (p *Publisher) PublishReconcile(ctx context.Context, req ReconcileRequest) error {
	return p.publish(ctx, ReconcileQueue, req)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Logger.Warn("rabbitmq dial failed", "queue", queue, "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Warn("rabbitmq channel open failed", "queue", queue, "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if err := declare(ch, queue); err != nil {
		p.Logger.Warn("rabbitmq queue declare failed", "queue", queue, "error", err)
		return err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.Logger.Warn("rabbitmq publish failed", "queue", queue, "error", err)
		return err
	}
	return nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	return err
}
