package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/iliyamo/class-enrollment/internal/apperr"
)

// snapCreator is the subset of snap.Client used here.
type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransBroker creates Snap transactions.  The Snap token plays the role
// of the client secret.  Midtrans only settles whole rupiah, so amounts are
// accepted in IDR only.
type MidtransBroker struct {
	snap snapCreator
}

func NewMidtransBroker(serverKey string, production bool) *MidtransBroker {
	var c snap.Client
	if production {
		c.New(serverKey, midtrans.Production)
	} else {
		c.New(serverKey, midtrans.Sandbox)
	}
	return &MidtransBroker{snap: &c}
}

func (b *MidtransBroker) CreateIntent(_ context.Context, amountMinor int64, currency, idempotencyKey string) (string, error) {
	if !strings.EqualFold(currency, "idr") {
		return "", apperr.New(apperr.KindInvalidInput, "midtrans only accepts idr")
	}
	orderID := idempotencyKey
	if orderID == "" {
		orderID = uuid.NewString()
	}
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amountMinor / 100,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
	}
	resp, merr := b.snap.CreateTransaction(req)
	if merr != nil {
		if merr.StatusCode >= 400 && merr.StatusCode < 500 && merr.StatusCode != 401 && merr.StatusCode != 429 {
			return "", apperr.Wrap(apperr.KindInvalidInput, "payment intent rejected", merr)
		}
		return "", apperr.Unavailable("payment processor unavailable", merr)
	}
	return resp.Token, nil
}
