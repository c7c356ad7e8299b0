package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/iliyamo/class-enrollment/internal/apperr"
)

// intentCreator is the subset of the Stripe payment intent client used here.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeBroker creates card payment intents through the Stripe API.
type StripeBroker struct {
	intents intentCreator
}

func NewStripeBroker(secretKey string) *StripeBroker {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeBroker{intents: sc.PaymentIntents}
}

func (b *StripeBroker) CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amountMinor),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	pi, err := b.intents.New(params)
	if err != nil {
		return "", classifyStripe(err)
	}
	return pi.ClientSecret, nil
}

// classifyStripe treats request errors as the caller's fault and everything
// else (network, 5xx, rate limiting) as the processor being unavailable.
func classifyStripe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 &&
		se.HTTPStatusCode != http.StatusTooManyRequests && se.HTTPStatusCode != http.StatusUnauthorized {
		return apperr.Wrap(apperr.KindInvalidInput, "payment intent rejected", err)
	}
	return apperr.Unavailable("payment processor unavailable", err)
}
