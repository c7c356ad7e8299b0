package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type CartStore struct {
	mu    sync.RWMutex
	items map[string]*model.Enrollment
}

func NewCartStore() *CartStore {
	return &CartStore{items: map[string]*model.Enrollment{}}
}

func (s *CartStore) Add(_ context.Context, e model.Enrollment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = newID()
	e.Email = strings.ToLower(e.Email)
	s.items[e.ID] = &e
	return e.ID, nil
}

func (s *CartStore) List(_ context.Context) ([]model.Enrollment, error) {
	return s.filter(func(*model.Enrollment) bool { return true }), nil
}

func (s *CartStore) ListByEmail(_ context.Context, email string) ([]model.Enrollment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.filter(func(e *model.Enrollment) bool { return e.Email == email }), nil
}

func (s *CartStore) filter(keep func(*model.Enrollment) bool) []model.Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Enrollment, 0, len(s.items))
	for _, e := range s.items {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *CartStore) Get(_ context.Context, id string) (model.Enrollment, error) {
	if err := checkID(id); err != nil {
		return model.Enrollment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return model.Enrollment{}, apperr.New(apperr.KindNotFound, "cart item not found")
	}
	return *e, nil
}

func (s *CartStore) RemoveOne(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return apperr.New(apperr.KindNotFound, "cart item not found")
	}
	delete(s.items, id)
	return nil
}

func (s *CartStore) RemoveMany(_ context.Context, email string, ids []string) (int64, error) {
	for _, id := range ids {
		if err := checkID(id); err != nil {
			return 0, err
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if e, ok := s.items[id]; ok && e.Email == email {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *CartStore) ValidID(id string) bool { return checkID(id) == nil }
