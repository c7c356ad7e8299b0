package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/iliyamo/class-enrollment/internal/apperr"
)

// BreakerSettings tunes the circuit breaker around a processor.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32        // consecutive failures before opening (default 5)
	OpenTimeout time.Duration // time spent open before probing (default 30s)
	Logger      *slog.Logger
}

// BreakerBroker fails fast with upstream_unavailable while the processor is
// known to be down.  Rejections for invalid input and calls abandoned by a
// canceled caller do not count as failures.
type BreakerBroker struct {
	next Broker
	cb   *gobreaker.CircuitBreaker[string]
}

func NewBreakerBroker(next Broker, s BreakerSettings) *BreakerBroker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperr.KindOf(err) == apperr.KindInvalidInput || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerBroker{next: next, cb: cb}
}

func (b *BreakerBroker) CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Unavailable("request canceled", err)
	}
	secret, err := b.cb.Execute(func() (string, error) {
		secret, err := b.next.CreateIntent(ctx, amountMinor, currency, idempotencyKey)
		if err != nil && errors.Is(ctx.Err(), context.Canceled) {
			// the caller went away; say so whatever the processor error looks like
			return "", apperr.Unavailable("request canceled", fmt.Errorf("%w: %w", context.Canceled, err))
		}
		return secret, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", apperr.Unavailable("payment processor unavailable", err)
	}
	return secret, err
}
