package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type ClassStore struct {
	mu      sync.RWMutex
	classes map[string]*model.Class
}

func NewClassStore() *ClassStore {
	return &ClassStore{classes: map[string]*model.Class{}}
}

func (s *ClassStore) Create(_ context.Context, c model.Class) (string, error) {
	if c.AvailableSeats < 0 || c.Enroll < 0 {
		return "", apperr.New(apperr.KindInvalidInput, "seat counts must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID()
	s.classes[c.ID] = &c
	return c.ID, nil
}

func (s *ClassStore) List(_ context.Context) ([]model.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Class, 0, len(s.classes))
	for _, c := range s.classes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *ClassStore) Get(_ context.Context, id string) (model.Class, error) {
	if err := checkID(id); err != nil {
		return model.Class{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return model.Class{}, apperr.New(apperr.KindNotFound, "class not found")
	}
	return *c, nil
}

func (s *ClassStore) Approve(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "class not found")
	}
	c.Status = model.ClassApproved
	return nil
}

func (s *ClassStore) AdjustSeats(_ context.Context, id string, seatDelta, enrollDelta int) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "class not found")
	}
	if c.AvailableSeats+seatDelta < 0 || c.Enroll+enrollDelta < 0 {
		return apperr.New(apperr.KindSeatsExhausted, "no seats available")
	}
	c.AvailableSeats += seatDelta
	c.Enroll += enrollDelta
	return nil
}

func (s *ClassStore) SetSeats(_ context.Context, id string, availableSeats, enroll int) error {
	if availableSeats < 0 || enroll < 0 {
		return apperr.New(apperr.KindInvalidInput, "seat counts must not be negative")
	}
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[id]
	if !ok {
		// upsert: the legacy update path creates a bare record
		c = &model.Class{ID: id, Status: model.ClassPending}
		s.classes[id] = c
	}
	c.AvailableSeats = availableSeats
	c.Enroll = enroll
	return nil
}
