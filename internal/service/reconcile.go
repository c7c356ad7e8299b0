package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Reconciler finishes settlements whose cart removal did not complete.  It
// only ever retries removal; the payment record itself is never rewritten
// beyond its status.
type Reconciler struct {
	payments repository.PaymentStore
	cart     repository.CartStore
	grace    time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler returns a Reconciler that leaves payments younger than grace
// alone so it does not race an in-flight settlement.
func NewReconciler(payments repository.PaymentStore, cart repository.CartStore, grace time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		payments: payments,
		cart:     cart,
		grace:    grace,
		batch:    100,
		logger:   resolveLogger(logger),
		now:      time.Now,
	}
}

// Sweep retries removal for every pending payment older than the grace
// period and returns how many were settled.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	pending, err := r.payments.ListPending(ctx, r.now().UTC().Add(-r.grace), r.batch)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if r.retire(ctx, p) {
			settled++
		}
	}
	if len(pending) > 0 {
		r.logger.Info("reconcile sweep finished", "pending", len(pending), "settled", settled)
	}
	return settled, nil
}

// ReconcileCharge retries removal for one charge.  Settled or unknown
// charges are a no-op.
func (r *Reconciler) ReconcileCharge(ctx context.Context, chargeID string) error {
	p, err := r.payments.FindByChargeID(ctx, chargeID)
	if err != nil {
		return err
	}
	if p.Status == model.PaymentSettled {
		return nil
	}
	r.retire(ctx, p)
	return nil
}

// retire removes p's cart items.  RemoveMany succeeding means none of the
// payer's listed ids exist any more, which is exactly the settled condition.
func (r *Reconciler) retire(ctx context.Context, p model.Payment) bool {
	removed, err := r.cart.RemoveMany(ctx, p.Email, p.CartItems)
	if err != nil {
		r.logger.Warn("reconcile: cart removal failed", "payment_id", p.ID, "error", err)
		return false
	}
	if err := r.payments.MarkSettled(ctx, p.ID, r.now().UTC()); err != nil {
		r.logger.Warn("reconcile: mark settled failed", "payment_id", p.ID, "error", err)
		return false
	}
	r.logger.Info("payment reconciled", "payment_id", p.ID, "charge_id", p.ChargeID, "removed", removed)
	return true
}
