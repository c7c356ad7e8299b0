// Package service holds the enrollment and settlement workflows that span
// more than one store.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/auth"
	"github.com/iliyamo/class-enrollment/internal/model"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// Catalog manages class submissions and the public class listing.  Reads
// for the same key are collapsed so a burst of cache misses hits the store
// once.
type Catalog struct {
	classes repository.ClassStore
	logger  *slog.Logger
	group   singleflight.Group
	now     func() time.Time
}

func NewCatalog(classes repository.ClassStore, logger *slog.Logger) *Catalog {
	return &Catalog{classes: classes, logger: resolveLogger(logger), now: time.Now}
}

// Submit stores a new pending class owned by the caller.
func (c *Catalog) Submit(ctx context.Context, id auth.Identity, class model.Class) (string, error) {
	if strings.TrimSpace(class.Name) == "" {
		return "", apperr.New(apperr.KindInvalidInput, "name is required")
	}
	if class.Price <= 0 {
		return "", apperr.New(apperr.KindInvalidInput, "price must be greater than zero")
	}
	if class.AvailableSeats < 0 {
		return "", apperr.New(apperr.KindInvalidInput, "availableSeats must not be negative")
	}
	class.InstructorEmail = id.Email
	class.Status = model.ClassPending
	class.Enroll = 0
	class.Feedback = ""
	class.CreatedAt = c.now().UTC()

	classID, err := c.classes.Create(ctx, class)
	if err != nil {
		return "", err
	}
	c.logger.Info("class submitted", "class_id", classID, "instructor", id.Email)
	return classID, nil
}

func (c *Catalog) List(ctx context.Context) ([]model.Class, error) {
	v, err, _ := c.group.Do("list", func() (any, error) {
		return c.classes.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Class), nil
}

func (c *Catalog) Get(ctx context.Context, classID string) (model.Class, error) {
	v, err, _ := c.group.Do("get:"+classID, func() (any, error) {
		return c.classes.Get(ctx, classID)
	})
	if err != nil {
		return model.Class{}, err
	}
	return v.(model.Class), nil
}

// Approve moves a class to approved.  Approving an approved class succeeds.
func (c *Catalog) Approve(ctx context.Context, classID string) error {
	if err := c.classes.Approve(ctx, classID); err != nil {
		return err
	}
	c.logger.Info("class approved", "class_id", classID)
	return nil
}

// SetSeats is the legacy seat overwrite used by instructors to resize a
// class.  It creates a bare record when the class does not exist.
func (c *Catalog) SetSeats(ctx context.Context, classID string, availableSeats, enroll int) error {
	return c.classes.SetSeats(ctx, classID, availableSeats, enroll)
}
