// Package payment wraps the external charge processors behind Broker.  A
// broker only creates payment intents and returns the client secret; it
// keeps no local state.
package payment

import (
	"context"
	"fmt"
	"strings"
)

// Broker creates a payment intent for amountMinor units of currency and
// returns the client-usable secret.  idempotencyKey lets the processor
// collapse retries of the same request.
type Broker interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (string, error)
}

// Config selects and configures a processor.
type Config struct {
	Provider   string // "stripe" or "midtrans"
	SecretKey  string
	Production bool // midtrans only
}

// New returns the configured processor wrapped in a circuit breaker.
func New(cfg Config) (Broker, error) {
	var b Broker
	switch strings.ToLower(cfg.Provider) {
	case "", "stripe":
		b = NewStripeBroker(cfg.SecretKey)
	case "midtrans":
		b = NewMidtransBroker(cfg.SecretKey, cfg.Production)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
	return NewBreakerBroker(b, BreakerSettings{Name: "payment-" + strings.ToLower(cfg.Provider)}), nil
}
