// Package file is the durable history backend: a JSON array on disk, most
// recent first, rewritten in full on every change.
//
// Writes go to a temporary file in the same directory and are renamed over
// the target, so readers never observe a partially written file. Within a
// process the read-modify-write cycle is serialized by a mutex; separate
// processes sharing the file are last-writer-wins.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"nebenkosten/internal/history"
)

type Store struct {
	mu   sync.Mutex
	path string
}

var _ history.Store = (*Store)(nil)

// New returns a store backed by path. The file is created on first write.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Record(ctx context.Context, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.load(ctx)
	return s.save(history.Prepend(entries, e))
}

func (s *Store) List(ctx context.Context) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx), nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save([]history.Entry{})
}

// load reads the history file. A missing, unreadable or corrupt file reads as
// an empty history. Elements that are not objects are skipped; an entry with
// wrong-typed values is kept and fails later in history.Restore.
func (s *Store) load(ctx context.Context) []history.Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "History file unreadable, treating as empty", "path", s.path, "error", err)
		}
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.WarnContext(ctx, "History file corrupt, treating as empty", "path", s.path, "error", err)
		return nil
	}
	entries := make([]history.Entry, 0, len(raw))
	for i, r := range raw {
		var e history.Entry
		if err := json.Unmarshal(r, &e); err != nil {
			slog.WarnContext(ctx, "Skipping corrupt history element", "path", s.path, "index", i, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > history.Capacity {
		entries = entries[:history.Capacity]
	}
	return entries
}

func (s *Store) save(entries []history.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
