package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]*model.User{}, byEmail: map[string]string{}}
}

func (s *UserStore) RegisterIfAbsent(_ context.Context, u model.User) (model.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return model.User{}, false, apperr.New(apperr.KindInvalidInput, "email is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[email]; ok {
		return *s.byID[id], false, nil
	}
	u.ID = newID()
	u.Email = email
	u.Role = model.RoleNone
	s.byID[u.ID] = &u
	s.byEmail[email] = u.ID
	return u, true, nil
}

func (s *UserStore) List(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return model.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	return *s.byID[id], nil
}

func (s *UserStore) Promote(_ context.Context, id string, role model.Role) error {
	if !role.Promotable() {
		return apperr.New(apperr.KindInvalidInput, "unknown role")
	}
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	u.Role = role
	return nil
}
