package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/class-enrollment/internal/apperr"
	"github.com/iliyamo/class-enrollment/internal/model"
)

type PaymentStore struct {
	mu       sync.RWMutex
	byID     map[string]*model.Payment
	byCharge map[string]string
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{byID: map[string]*model.Payment{}, byCharge: map[string]string{}}
}

func (s *PaymentStore) Insert(_ context.Context, p model.Payment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byCharge[p.ChargeID]; dup {
		return "", apperr.New(apperr.KindAlreadySettled, "charge already settled")
	}
	p.ID = newID()
	p.Email = strings.ToLower(p.Email)
	p.CartItems = append([]string(nil), p.CartItems...)
	s.byID[p.ID] = &p
	s.byCharge[p.ChargeID] = p.ID
	return p.ID, nil
}

func (s *PaymentStore) FindByChargeID(_ context.Context, chargeID string) (model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCharge[chargeID]
	if !ok {
		return model.Payment{}, apperr.New(apperr.KindNotFound, "payment not found")
	}
	return clonePayment(s.byID[id]), nil
}

func (s *PaymentStore) ListByEmail(_ context.Context, email string) ([]model.Payment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.filter(func(p *model.Payment) bool { return p.Email == email }, 0), nil
}

func (s *PaymentStore) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]model.Payment, error) {
	return s.filter(func(p *model.Payment) bool {
		return p.Status == model.PaymentRetirementPending && !p.CreatedAt.After(createdBefore)
	}, limit), nil
}

func (s *PaymentStore) filter(keep func(*model.Payment) bool, limit int) []model.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Payment, 0)
	for _, p := range s.byID {
		if keep(p) {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *PaymentStore) MarkSettled(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "payment not found")
	}
	if p.Status == model.PaymentSettled {
		return nil
	}
	p.Status = model.PaymentSettled
	p.SettledAt = &at
	return nil
}

func clonePayment(p *model.Payment) model.Payment {
	out := *p
	out.CartItems = append([]string(nil), p.CartItems...)
	out.ClassIDs = append([]string(nil), p.ClassIDs...)
	out.ItemNames = append([]string(nil), p.ItemNames...)
	return out
}
