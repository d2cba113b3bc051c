// Package memstore keeps session tokens in process memory. Used in dev mode,
// in the demo and wherever tokens need not survive a restart.
package memstore

import (
	"context"
	"sync"

	"applyassist/internal/domain/ports/repository"
)

var _ repository.SessionTokenStore = (*TokenStore)(nil)

type TokenStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{values: make(map[string]string)}
}

func (s *TokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *TokenStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *TokenStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
