package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
	"github.com/iliyamo/class-enrollment/internal/repository/memstore"
)

var ana = auth.Identity{Email: "ana@example.com"}

type settlementFixture struct {
	stores   repository.Stores
	cart     *flakyCart
	payments *flakyPayments
	broker   *countingBroker
	events   *recordingEvents
	coord    *Coordinator
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	stores := memstore.New()
	f := &settlementFixture{
		stores:   stores,
		cart:     &flakyCart{CartStore: stores.Cart},
		payments: &flakyPayments{PaymentStore: stores.Payments},
		broker:   &countingBroker{},
		events:   &recordingEvents{},
	}
	f.coord = NewCoordinator(CoordinatorConfig{
		Payments: f.payments,
		Cart:     f.cart,
		Broker:   f.broker,
		Events:   f.events,
		Currency: "usd",
	})
	return f
}

func (f *settlementFixture) addItems(t *testing.T, email string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		id, err := f.stores.Cart.Add(context.Background(), model.Enrollment{ClassID: "class", Email: email, Price: 10})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestSettle_RemovesExactlyThePaidItems(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 3)
	a, b, c := items[0], items[1], items[2]

	res, err := f.coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 20, CartItems: []string{a, b, a}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, int64(2), res.Removed)
	assert.Equal(t, model.PaymentSettled, res.Status)

	left, err := f.stores.Cart.ListByEmail(ctx, ana.Email)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, c, left[0].ID)

	history, err := f.stores.Payments.ListByEmail(ctx, ana.Email)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.ElementsMatch(t, []string{a, b}, history[0].CartItems)
	assert.Equal(t, int64(2000), history[0].AmountMinor)
	assert.Equal(t, "usd", history[0].Currency)
	assert.Equal(t, model.PaymentSettled, history[0].Status)

	require.Len(t, f.events.settled, 1)
	assert.Equal(t, "pi_1", f.events.settled[0].ChargeID)
	assert.Empty(t, f.events.reconcile)
}

func TestSettle_ReplayIsAlreadySettled(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 2)
	req := SettleRequest{ChargeID: "pi_1", Price: 20, CartItems: items}

	first, err := f.coord.Settle(ctx, ana, req)
	require.NoError(t, err)

	again, err := f.coord.Settle(ctx, ana, req)
	assert.ErrorIs(t, err, apperr.ErrAlreadySettled)
	assert.Equal(t, first.PaymentID, again.PaymentID)
	assert.Equal(t, int64(0), again.Removed)
	assert.Equal(t, model.PaymentSettled, again.Status)

	history, err := f.stores.Payments.ListByEmail(ctx, ana.Email)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSettle_ReplayByAnotherUserRevealsNothing(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 1)
	_, err := f.coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 10, CartItems: items})
	require.NoError(t, err)

	removesBefore := f.cart.removes
	res, err := f.coord.Settle(ctx, auth.Identity{Email: "eve@example.com"},
		SettleRequest{ChargeID: "pi_1", Price: 10, CartItems: items})
	assert.ErrorIs(t, err, apperr.ErrAlreadySettled)
	assert.Equal(t, SettlementResult{}, res)
	assert.Equal(t, removesBefore, f.cart.removes)
}

func TestSettle_RejectsItemsOfAnotherUser(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	bob := auth.Identity{Email: "bob@example.com"}
	mallory := auth.Identity{Email: "mallory@example.com"}
	bobs := f.addItems(t, bob.Email, 2)
	own := f.addItems(t, mallory.Email, 1)

	for name, items := range map[string][]string{
		"only foreign items": bobs,
		"mixed with own":     {own[0], bobs[1]},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := f.coord.Settle(ctx, mallory, SettleRequest{ChargeID: "fake_1", Price: 0.01, CartItems: items})
			assert.ErrorIs(t, err, apperr.ErrForbidden)
			assert.Equal(t, SettlementResult{}, res)
		})
	}

	assert.Zero(t, f.cart.removes)
	left, err := f.stores.Cart.ListByEmail(ctx, bob.Email)
	require.NoError(t, err)
	assert.Len(t, left, 2)
	mine, err := f.stores.Cart.ListByEmail(ctx, mallory.Email)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	history, err := f.stores.Payments.ListByEmail(ctx, mallory.Email)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = f.stores.Payments.FindByChargeID(ctx, "fake_1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.events.settled)
	assert.Empty(t, f.events.reconcile)

	// the charge id is still free for its real owner
	res, err := f.coord.Settle(ctx, bob, SettleRequest{ChargeID: "fake_1", Price: 20, CartItems: bobs})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Removed)
}

func TestSettle_PartialWhenRemovalFails(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 2)
	f.cart.removeErr = apperr.Unavailable("store unavailable", errors.New("timeout"))

	res, err := f.coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 20, CartItems: items})
	assert.ErrorIs(t, err, apperr.ErrPartialSettlement)
	assert.NotEmpty(t, res.PaymentID)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, int64(0), res.Removed)
	assert.Equal(t, model.PaymentRetirementPending, res.Status)
	require.Len(t, f.events.reconcile, 1)
	assert.Equal(t, "pi_1", f.events.reconcile[0].ChargeID)
	assert.Empty(t, f.events.settled)

	// the reconciler finishes the job once the store recovers
	f.cart.removeErr = nil
	r := NewReconciler(f.stores.Payments, f.cart, 0, nil)
	settled, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	left, err := f.stores.Cart.ListByEmail(ctx, ana.Email)
	require.NoError(t, err)
	assert.Empty(t, left)
	p, err := f.stores.Payments.FindByChargeID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSettled, p.Status)
}

func TestSettle_PartialWhenItemsAlreadyGone(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 2)
	require.NoError(t, f.stores.Cart.RemoveOne(ctx, items[1]))

	res, err := f.coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 20, CartItems: items})
	assert.ErrorIs(t, err, apperr.ErrPartialSettlement)
	assert.Equal(t, int64(1), res.Removed)
}

func TestSettle_InsertFailureAbortsRemoval(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 2)
	f.payments.insertErr = apperr.Unavailable("store unavailable", errors.New("conn refused"))

	_, err := f.coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 20, CartItems: items})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Zero(t, f.cart.removes)

	left, err := f.stores.Cart.ListByEmail(ctx, ana.Email)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestSettle_ValidatesBeforeWriting(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	items := f.addItems(t, ana.Email, 1)

	cases := map[string]SettleRequest{
		"missing charge id": {Price: 10, CartItems: items},
		"no items":          {ChargeID: "pi_1", Price: 10},
		"malformed item id": {ChargeID: "pi_1", Price: 10, CartItems: []string{"nope"}},
		"negative price":    {ChargeID: "pi_1", Price: -1, CartItems: items},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.coord.Settle(ctx, ana, req)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		})
	}
	history, err := f.stores.Payments.ListByEmail(ctx, ana.Email)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.coord.Settle(ctx, auth.Identity{}, SettleRequest{ChargeID: "pi_1", Price: 10, CartItems: items})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestSettle_AtomicStore(t *testing.T) {
	stores := memstore.New()
	events := &recordingEvents{}
	coord := NewCoordinator(CoordinatorConfig{
		Payments: &atomicPayments{PaymentStore: stores.Payments, cart: stores.Cart},
		Cart:     stores.Cart,
		Broker:   &countingBroker{},
		Events:   events,
	})
	ctx := context.Background()
	a, _ := stores.Cart.Add(ctx, model.Enrollment{Email: ana.Email})
	b, _ := stores.Cart.Add(ctx, model.Enrollment{Email: ana.Email})

	res, err := coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 5, CartItems: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Removed)
	assert.Equal(t, model.PaymentSettled, res.Status)
	assert.Len(t, events.settled, 1)

	c, _ := stores.Cart.Add(ctx, model.Enrollment{Email: ana.Email})
	res, err = coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_2", Price: 5, CartItems: []string{a, c}})
	assert.ErrorIs(t, err, apperr.ErrPartialSettlement)
	assert.Equal(t, int64(1), res.Removed)
	assert.Len(t, events.reconcile, 1)

	_, err = coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_1", Price: 5, CartItems: []string{a, b}})
	assert.ErrorIs(t, err, apperr.ErrAlreadySettled)

	bobs, _ := stores.Cart.Add(ctx, model.Enrollment{Email: "bob@example.com"})
	_, err = coord.Settle(ctx, ana, SettleRequest{ChargeID: "pi_3", Price: 5, CartItems: []string{bobs}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	left, err := stores.Cart.ListByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Len(t, left, 1)
	_, err = stores.Payments.FindByChargeID(ctx, "pi_3")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRequestIntent(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	secret, err := f.coord.RequestIntent(ctx, ana, 49.99, "")
	require.NoError(t, err)
	assert.Equal(t, "secret_123", secret)
	assert.Equal(t, int64(4999), f.broker.last)

	_, err = f.coord.RequestIntent(ctx, ana, -5, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = f.coord.RequestIntent(ctx, ana, 0, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, 1, f.broker.calls, "invalid prices must not reach the broker")
}

func TestReconcileCharge(t *testing.T) {
	stores := memstore.New()
	ctx := context.Background()
	item, _ := stores.Cart.Add(ctx, model.Enrollment{Email: ana.Email})
	_, err := stores.Payments.Insert(ctx, model.Payment{
		ChargeID: "pi_9", Email: ana.Email, CartItems: []string{item},
		Status: model.PaymentRetirementPending, CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	r := NewReconciler(stores.Payments, stores.Cart, time.Hour, nil)
	// too young for the sweep
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, r.ReconcileCharge(ctx, "pi_9"))
	p, err := stores.Payments.FindByChargeID(ctx, "pi_9")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSettled, p.Status)
	require.NoError(t, r.ReconcileCharge(ctx, "pi_9"))

	assert.ErrorIs(t, r.ReconcileCharge(ctx, "pi_unknown"), apperr.ErrNotFound)
}
