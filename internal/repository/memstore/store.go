// Package memstore is an in-process implementation of the repository
// contracts.  It backs the "memory" store driver and the service tests.  Ids
// are random UUIDs; every store guards its map with its own mutex, so each
// operation is atomic with respect to concurrent callers.
package memstore

import (
	"github.com/google/uuid"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/repository"
)

// New returns a fresh set of empty stores.
func New() repository.Stores {
	return repository.Stores{
		Users:    NewUserStore(),
		Classes:  NewClassStore(),
		Cart:     NewCartStore(),
		Payments: NewPaymentStore(),
	}
}

func newID() string { return uuid.NewString() }

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.New(apperr.KindInvalidInput, "malformed id")
	}
	return nil
}
