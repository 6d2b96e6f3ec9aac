// Package memory is the volatile history backend: entries live as long as
// the process.
package memory

import (
	"context"
	"sync"

	"nebenkosten/internal/history"
)

type Store struct {
	mu      sync.Mutex
	entries []history.Entry
}

var _ history.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Record prepends the entry and keeps the newest history.Capacity entries.
func (s *Store) Record(_ context.Context, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = history.Prepend(s.entries, e)
	return nil
}

// List returns a copy of the entries, most recent first.
func (s *Store) List(_ context.Context) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.Entry(nil), s.entries...), nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
