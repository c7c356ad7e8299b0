// Package repository defines the persistence contracts used by the services
// and the MySQL implementation of them.  Document-store and in-memory
// implementations live in the mongostore and memstore subpackages.  All
// implementations report failures as apperr kinds: a missing row is
// KindNotFound, a malformed id is KindInvalidInput, a duplicate charge id is
// KindAlreadySettled, and driver failures are KindUpstreamUnavailable.
package repository

import (
	"context"
	"time"

	"github.com/iliyamo/class-enrollment/internal/model"
)

// UserStore holds user records keyed by unique email.
type UserStore interface {
	// RegisterIfAbsent inserts u unless a user with the same email exists.
	// It returns the stored record and whether it was created by this call.
	RegisterIfAbsent(ctx context.Context, u model.User) (model.User, bool, error)
	List(ctx context.Context) ([]model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	// Promote sets the role of user id.  Reapplying the same role is a no-op.
	Promote(ctx context.Context, id string, role model.Role) error
}

// ClassStore holds class records and their seat inventory.
type ClassStore interface {
	Create(ctx context.Context, c model.Class) (string, error)
	List(ctx context.Context) ([]model.Class, error)
	Get(ctx context.Context, id string) (model.Class, error)
	// Approve moves a class to approved.  Approving twice is not an error.
	Approve(ctx context.Context, id string) error
	// AdjustSeats atomically adds seatDelta to availableSeats and enrollDelta
	// to enroll, only if neither result would be negative.  It returns
	// KindSeatsExhausted when the condition fails for an existing class.
	AdjustSeats(ctx context.Context, id string, seatDelta, enrollDelta int) error
	// SetSeats overwrites availableSeats and enroll, creating the record when
	// it does not exist.  Negative values are rejected.
	SetSeats(ctx context.Context, id string, availableSeats, enroll int) error
}

// CartStore holds pending enrollment line items.
type CartStore interface {
	Add(ctx context.Context, e model.Enrollment) (string, error)
	List(ctx context.Context) ([]model.Enrollment, error)
	ListByEmail(ctx context.Context, email string) ([]model.Enrollment, error)
	Get(ctx context.Context, id string) (model.Enrollment, error)
	RemoveOne(ctx context.Context, id string) error
	// RemoveMany deletes every line item of email whose id is in ids and
	// returns how many rows were deleted.  Ids that are already gone or that
	// belong to another email contribute zero.
	RemoveMany(ctx context.Context, email string, ids []string) (int64, error)
}

// PaymentStore holds immutable payment records.
type PaymentStore interface {
	// Insert stores p and returns its id.  A second insert with the same
	// ChargeID fails with KindAlreadySettled.
	Insert(ctx context.Context, p model.Payment) (string, error)
	FindByChargeID(ctx context.Context, chargeID string) (model.Payment, error)
	ListByEmail(ctx context.Context, email string) ([]model.Payment, error)
	// ListPending returns up to limit payments still in retirement_pending
	// that were created at or before the given time, oldest first.
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Payment, error)
	// MarkSettled advances a pending payment to settled.  It is a no-op for a
	// payment that is already settled.
	MarkSettled(ctx context.Context, id string, at time.Time) error
}

// AtomicSettler is implemented by payment stores that share a transactional
// engine with the cart store.  SettleAtomic inserts p and deletes the listed
// cart items in one transaction; p is stored as settled only when every id
// was removed.
type AtomicSettler interface {
	SettleAtomic(ctx context.Context, p model.Payment, cartItemIDs []string) (id string, removed int64, err error)
}

// IDChecker is implemented by stores whose ids have a fixed format.  It lets
// callers reject malformed ids before starting a multi-step write.
type IDChecker interface {
	ValidID(id string) bool
}

// Stores bundles one implementation of each store.
type Stores struct {
	Users    UserStore
	Classes  ClassStore
	Cart     CartStore
	Payments PaymentStore
}
