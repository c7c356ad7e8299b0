package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Enrollment moves seats between a class's inventory and users' carts.
// Every cart line item holds exactly one seat: taking the seat and adding
// the item happen together, and a failed add returns the seat.
type Enrollment struct {
	classes repository.ClassStore
	cart    repository.CartStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewEnrollment(classes repository.ClassStore, cart repository.CartStore, logger *slog.Logger) *Enrollment {
	return &Enrollment{classes: classes, cart: cart, logger: resolveLogger(logger), now: time.Now}
}

// Enroll reserves one seat of classID for the caller and adds a cart line
// item snapshotting the class.  A class with no seats left fails with
// seats_exhausted; a class not yet approved fails with conflict.
func (e *Enrollment) Enroll(ctx context.Context, id auth.Identity, classID string) (model.Enrollment, error) {
	class, err := e.classes.Get(ctx, classID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if class.Status != model.ClassApproved {
		return model.Enrollment{}, apperr.New(apperr.KindConflict, "class is not open for enrollment")
	}
	if err := e.classes.AdjustSeats(ctx, classID, -1, 1); err != nil {
		return model.Enrollment{}, err
	}

	item := model.Enrollment{
		ClassID:        class.ID,
		Email:          id.Email,
		Name:           class.Name,
		Image:          class.Image,
		InstructorName: class.InstructorName,
		Price:          class.Price,
		CreatedAt:      e.now().UTC(),
	}
	item.ID, err = e.cart.Add(ctx, item)
	if err != nil {
		// give the seat back; the request context may already be gone
		if cerr := e.classes.AdjustSeats(context.WithoutCancel(ctx), classID, 1, -1); cerr != nil {
			e.logger.Error("failed to return seat after cart insert failure",
				"class_id", classID, "email", id.Email, "error", cerr)
		}
		return model.Enrollment{}, err
	}
	e.logger.Info("class enrolled", "class_id", classID, "item_id", item.ID, "email", id.Email)
	return item, nil
}

// List returns the caller's cart.  An empty email yields an empty list and
// asking for another user's cart is forbidden.
func (e *Enrollment) List(ctx context.Context, id auth.Identity, email string) ([]model.Enrollment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return []model.Enrollment{}, nil
	}
	if email != id.Email {
		return nil, apperr.New(apperr.KindForbidden, "forbidden access")
	}
	return e.cart.ListByEmail(ctx, email)
}

// Remove deletes one of the caller's unpaid line items and returns its seat
// to the class.
func (e *Enrollment) Remove(ctx context.Context, id auth.Identity, itemID string) error {
	item, err := e.cart.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Email != id.Email {
		return apperr.New(apperr.KindForbidden, "forbidden access")
	}
	if err := e.cart.RemoveOne(ctx, itemID); err != nil {
		return err
	}
	if err := e.classes.AdjustSeats(context.WithoutCancel(ctx), item.ClassID, 1, -1); err != nil {
		// the item is gone either way; a missing class has nothing to return to
		e.logger.Warn("failed to return seat after cart removal",
			"class_id", item.ClassID, "item_id", itemID, "error", err)
	}
	return nil
}
