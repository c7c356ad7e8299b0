package service

import (
	"context"
	"sync"

	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/queue"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// flakyCart fails RemoveMany or Add while the matching error is set.
type flakyCart struct {
	repository.CartStore
	removeErr error
	addErr    error
	removes   int
}

func (f *flakyCart) RemoveMany(ctx context.Context, email string, ids []string) (int64, error) {
	f.removes++
	if f.removeErr != nil {
		return 0, f.removeErr
	}
	return f.CartStore.RemoveMany(ctx, email, ids)
}

func (f *flakyCart) ValidID(id string) bool {
	c, ok := f.CartStore.(repository.IDChecker)
	return !ok || c.ValidID(id)
}

func (f *flakyCart) Add(ctx context.Context, e model.Enrollment) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	return f.CartStore.Add(ctx, e)
}

// flakyPayments fails Insert while insertErr is set.
type flakyPayments struct {
	repository.PaymentStore
	insertErr error
}

func (f *flakyPayments) Insert(ctx context.Context, p model.Payment) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return f.PaymentStore.Insert(ctx, p)
}

// atomicPayments simulates a transactional store on top of the memory
// stores: it removes what exists and only marks the payment settled when
// every id was removed.
type atomicPayments struct {
	repository.PaymentStore
	cart repository.CartStore
}

func (a *atomicPayments) SettleAtomic(ctx context.Context, p model.Payment, ids []string) (string, int64, error) {
	id, err := a.PaymentStore.Insert(ctx, p)
	if err != nil {
		return "", 0, err
	}
	removed, err := a.cart.RemoveMany(ctx, p.Email, ids)
	if err != nil {
		return "", 0, err
	}
	if removed == int64(len(ids)) {
		_ = a.PaymentStore.MarkSettled(ctx, id, p.CreatedAt)
	}
	return id, removed, nil
}

type countingBroker struct {
	mu    sync.Mutex
	calls int
	last  int64
}

func (b *countingBroker) CreateIntent(_ context.Context, amountMinor int64, _, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.last = amountMinor
	return "secret_123", nil
}

type recordingEvents struct {
	mu        sync.Mutex
	settled   []queue.PaymentSettledEvent
	reconcile []queue.ReconcileRequest
}

func (r *recordingEvents) PublishPaymentSettled(_ context.Context, ev queue.PaymentSettledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, ev)
	return nil
}

func (r *recordingEvents) PublishReconcile(_ context.Context, req queue.ReconcileRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconcile = append(r.reconcile, req)
	return nil
}
