package memory

import (
	"context"
	"sync"
)

type SubscriptionStore struct {
	mu        sync.RWMutex
	customers map[string]struct{}
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{customers: make(map[string]struct{})}
}

func (s *SubscriptionStore) Add(_ context.Context, customerNumber string) error {
	s.mu.Lock()
	s.customers[customerNumber] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *SubscriptionStore) Remove(_ context.Context, customerNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.customers[customerNumber]
	delete(s.customers, customerNumber)
	return ok, nil
}

func (s *SubscriptionStore) Contains(_ context.Context, customerNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.customers[customerNumber]
	return ok, nil
}
