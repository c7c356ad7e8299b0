package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReconcileHandler retries cart retirement for one charge.
type ReconcileHandler interface {
	ReconcileCharge(ctx context.Context, chargeID string) error
}

// StartReconcileConsumer consumes the settlement.reconcile queue until ctx
// is cancelled.  It redials with exponential backoff when the broker goes
// away.  A message that fails to process is rejected without requeue; the
// periodic sweep picks the payment up later.
func StartReconcileConsumer(ctx context.Context, url string, h ReconcileHandler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("reconcile consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, h, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("reconcile consumer: consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, h ReconcileHandler, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		logger.Warn("reconcile consumer: set QoS failed", "error", err)
	}
	if err := declare(ch, ReconcileQueue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ReconcileQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, h); err != nil {
				logger.Error("reconcile consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(ctx context.Context, body []byte, h ReconcileHandler) error {
	var req ReconcileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if req.ChargeID == "" {
		return errors.New("reconcile request without charge id")
	}
	return h.ReconcileCharge(ctx, req.ChargeID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
