// Package memory provides an in-process KV backend for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/bekovrafik/DreamColor/internal/errs"
)

// KV is a map-backed repository.KV.
type KV struct {
	mu     sync.RWMutex
	values map[string][]byte

	// PutErr, when set, is returned by Put without storing anything.
	PutErr error
	puts   int
}

// New returns an empty store.
func New() *KV { return &KV{values: make(map[string][]byte)} }

// Get returns a copy of the value stored under key.
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value.
func (s *KV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return s.PutErr
	}
	s.values[key] = append([]byte(nil), value...)
	s.puts++
	return nil
}

// Delete removes key.
func (s *KV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Puts returns the number of successful writes.
func (s *KV) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
