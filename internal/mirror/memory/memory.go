// Package memory is an in-memory mirror used in tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"subtrack/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]core.Subscription
}

func New() *Store {
	return &Store{rows: make(map[string]core.Subscription)}
}

// Upsert stores the subscription and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, sub core.Subscription) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[sub.ID] = sub
	return fmt.Sprintf("mem:%s", sub.ID), nil
}

// Delete removes the row; deleting a missing row is a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Get returns the mirrored row, for assertions in tests.
func (s *Store) Get(id string) (core.Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.rows[id]
	return sub, ok
}

// Len returns the number of mirrored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
