package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/payment"
	"github.com/iliyamo/class-enrollment/internal/queue"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// EventPublisher delivers settlement events.  Publishing is best-effort: a
// failure is logged and never fails the settlement.
type EventPublisher interface {
	PublishPaymentSettled(ctx context.Context, ev queue.PaymentSettledEvent) error
	PublishReconcile(ctx context.Context, req queue.ReconcileRequest) error
}

// SettleRequest is what the client reports after confirming a charge with
// the processor.
type SettleRequest struct {
	ChargeID  string
	Price     float64
	Currency  string
	CartItems []string
	ClassIDs  []string
	ItemNames []string
}

// SettlementResult reports both steps of a settlement independently.
type SettlementResult struct {
	PaymentID string
	Requested int
	Removed   int64
	Status    model.PaymentStatus
}

// Coordinator records confirmed charges and retires the cart line items
// they paid for.
type Coordinator struct {
	payments repository.PaymentStore
	cart     repository.CartStore
	broker   payment.Broker
	events   EventPublisher
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

// CoordinatorConfig wires a Coordinator.  Events may be nil.
type CoordinatorConfig struct {
	Payments repository.PaymentStore
	Cart     repository.CartStore
	Broker   payment.Broker
	Events   EventPublisher
	Currency string
	Logger   *slog.Logger
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Coordinator{
		payments: cfg.Payments,
		cart:     cfg.Cart,
		broker:   cfg.Broker,
		events:   cfg.Events,
		currency: currency,
		logger:   resolveLogger(cfg.Logger),
		now:      time.Now,
	}
}

// RequestIntent converts price to minor units and asks the processor for a
// client secret.  Invalid prices never reach the processor.  Nothing is
// stored locally.
func (c *Coordinator) RequestIntent(ctx context.Context, id auth.Identity, price float64, idempotencyKey string) (string, error) {
	if id.Email == "" {
		return "", apperr.New(apperr.KindUnauthorized, "unauthorized access")
	}
	amount, err := payment.ToMinorUnits(price)
	if err != nil {
		return "", err
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	secret, err := c.broker.CreateIntent(ctx, amount, c.currency, idempotencyKey)
	if err != nil {
		c.logger.Warn("payment intent failed", "email", id.Email, "amount_minor", amount, "error", err)
		return "", err
	}
	return secret, nil
}

// Settle records the charge and removes the paid cart items.
//
// Every listed item must belong to the caller; an item of another user
// fails the whole request with forbidden before anything is written.  The
// payment is inserted first with status retirement_pending; if that fails
// nothing is removed.  A replayed charge id returns already_settled
// together with the outcome of retrying removal of the stored items.  When
// removal fails or removes fewer items than requested the result is
// returned with a partial_settlement error and a reconcile request is
// published.
func (c *Coordinator) Settle(ctx context.Context, id auth.Identity, req SettleRequest) (SettlementResult, error) {
	p, ids, err := c.validate(id, req)
	if err != nil {
		return SettlementResult{}, err
	}
	if err := c.checkOwnership(ctx, id.Email, ids); err != nil {
		return SettlementResult{}, err
	}

	if settler, ok := c.payments.(repository.AtomicSettler); ok {
		return c.settleAtomic(ctx, id, settler, p, ids)
	}

	paymentID, err := c.payments.Insert(ctx, p)
	if errors.Is(err, apperr.ErrAlreadySettled) {
		return c.replay(ctx, id, p.ChargeID)
	}
	if err != nil {
		return SettlementResult{}, err
	}
	p.ID = paymentID

	res := SettlementResult{PaymentID: paymentID, Requested: len(ids), Status: model.PaymentRetirementPending}
	removed, rmErr := c.cart.RemoveMany(ctx, id.Email, ids)
	res.Removed = removed
	if rmErr != nil || removed < int64(len(ids)) {
		return res, c.partial(ctx, p, res, rmErr)
	}

	settledAt := c.now().UTC()
	if err := c.payments.MarkSettled(ctx, paymentID, settledAt); err != nil {
		// the items are gone; the sweep will advance the status
		c.logger.Error("failed to mark payment settled", "payment_id", paymentID, "error", err)
	} else {
		res.Status = model.PaymentSettled
	}
	c.publishSettled(ctx, p, settledAt)
	return res, nil
}

func (c *Coordinator) settleAtomic(ctx context.Context, id auth.Identity, settler repository.AtomicSettler, p model.Payment, ids []string) (SettlementResult, error) {
	paymentID, removed, err := settler.SettleAtomic(ctx, p, ids)
	if errors.Is(err, apperr.ErrAlreadySettled) {
		return c.replay(ctx, id, p.ChargeID)
	}
	if err != nil {
		return SettlementResult{}, err
	}
	p.ID = paymentID
	res := SettlementResult{PaymentID: paymentID, Requested: len(ids), Removed: removed, Status: model.PaymentSettled}
	if removed < int64(len(ids)) {
		res.Status = model.PaymentRetirementPending
		return res, c.partial(ctx, p, res, nil)
	}
	c.publishSettled(ctx, p, c.now().UTC())
	return res, nil
}

// replay handles a charge id that is already recorded.  Only the payer gets
// removal retried and sees the stored outcome.
func (c *Coordinator) replay(ctx context.Context, id auth.Identity, chargeID string) (SettlementResult, error) {
	dup := apperr.New(apperr.KindAlreadySettled, "charge already settled")

	stored, err := c.payments.FindByChargeID(ctx, chargeID)
	if err != nil {
		c.logger.Error("failed to load settled payment", "charge_id", chargeID, "error", err)
		return SettlementResult{}, dup
	}
	if stored.Email != id.Email {
		return SettlementResult{}, dup
	}

	res := SettlementResult{PaymentID: stored.ID, Requested: len(stored.CartItems), Status: stored.Status}
	removed, err := c.cart.RemoveMany(ctx, stored.Email, stored.CartItems)
	if err != nil {
		c.logger.Warn("retrying cart removal for settled charge failed", "charge_id", chargeID, "error", err)
		return res, dup
	}
	res.Removed = removed
	if stored.Status != model.PaymentSettled {
		if err := c.payments.MarkSettled(ctx, stored.ID, c.now().UTC()); err != nil {
			c.logger.Error("failed to mark payment settled", "payment_id", stored.ID, "error", err)
		} else {
			res.Status = model.PaymentSettled
		}
	}
	return res, dup
}

func (c *Coordinator) validate(id auth.Identity, req SettleRequest) (model.Payment, []string, error) {
	if id.Email == "" {
		return model.Payment{}, nil, apperr.New(apperr.KindUnauthorized, "unauthorized access")
	}
	chargeID := strings.TrimSpace(req.ChargeID)
	if chargeID == "" {
		return model.Payment{}, nil, apperr.New(apperr.KindInvalidInput, "transactionId is required")
	}
	ids := dedupe(req.CartItems)
	if len(ids) == 0 {
		return model.Payment{}, nil, apperr.New(apperr.KindInvalidInput, "cartItems must not be empty")
	}
	checker, _ := c.cart.(repository.IDChecker)
	for _, itemID := range ids {
		if itemID == "" || (checker != nil && !checker.ValidID(itemID)) {
			return model.Payment{}, nil, apperr.New(apperr.KindInvalidInput, "malformed cart item id")
		}
	}
	amount, err := payment.ToMinorUnits(req.Price)
	if err != nil {
		return model.Payment{}, nil, err
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = c.currency
	}
	return model.Payment{
		ChargeID:    chargeID,
		Email:       id.Email,
		Price:       req.Price,
		AmountMinor: amount,
		Currency:    currency,
		CartItems:   ids,
		ClassIDs:    req.ClassIDs,
		ItemNames:   req.ItemNames,
		Status:      model.PaymentRetirementPending,
		CreatedAt:   c.now().UTC(),
	}, ids, nil
}

func (c *Coordinator) partial(ctx context.Context, p model.Payment, res SettlementResult, cause error) error {
	c.logger.Warn("partial settlement",
		"payment_id", res.PaymentID, "charge_id", p.ChargeID,
		"requested", res.Requested, "removed", res.Removed, "error", cause)
	if c.events != nil {
		req := queue.ReconcileRequest{
			PaymentID:   res.PaymentID,
			ChargeID:    p.ChargeID,
			Requested:   res.Requested,
			Removed:     res.Removed,
			RequestedAt: c.now().UTC().Format(time.RFC3339),
		}
		if err := c.events.PublishReconcile(context.WithoutCancel(ctx), req); err != nil {
			c.logger.Warn("failed to publish reconcile request", "payment_id", res.PaymentID, "error", err)
		}
	}
	return apperr.Wrap(apperr.KindPartialSettlement,
		"payment recorded but cart items were not all removed; removal will be retried", cause)
}

func (c *Coordinator) publishSettled(ctx context.Context, p model.Payment, at time.Time) {
	if c.events == nil {
		return
	}
	ev := queue.PaymentSettledEvent{
		PaymentID:   p.ID,
		ChargeID:    p.ChargeID,
		Email:       p.Email,
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		CartItems:   p.CartItems,
		ClassIDs:    p.ClassIDs,
		ItemNames:   p.ItemNames,
		SettledAt:   at.Format(time.RFC3339),
	}
	if err := c.events.PublishPaymentSettled(context.WithoutCancel(ctx), ev); err != nil {
		c.logger.Warn("failed to publish payment settled event", "payment_id", p.ID, "error", err)
	}
}

// checkOwnership rejects the request when any listed item belongs to
// another user.  Items that no longer exist are left to the removal step,
// which reports them as not removed.
func (c *Coordinator) checkOwnership(ctx context.Context, email string, ids []string) error {
	for _, itemID := range ids {
		item, err := c.cart.Get(ctx, itemID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if item.Email != email {
			c.logger.Warn("settle rejected: cart item of another user", "email", email, "item_id", itemID)
			return apperr.New(apperr.KindForbidden, "forbidden access")
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
