// Package hidestore persists the set of pull request ids the reviewer has
// dismissed. The set only ever grows and must survive restarts: a dismiss
// is flushed to disk before the UI acknowledges it.
package hidestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the durable hide set. Safe for use from concurrent commands.
type Store struct {
	path string

	mu    sync.Mutex
	ids   map[string]struct{}
	order []string // serialization order, oldest dismiss first
}

// Open loads the store at path. A missing or unreadable file yields an
// empty store rather than an error: hide state is a convenience and must
// never block startup.
func Open(path string) *Store {
	s := &Store{
		path: path,
		ids:  map[string]struct{}{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		// Corrupt file: degrade to an empty set. The next Hide rewrites it.
		return s
	}
	for _, id := range order {
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		s.order = append(s.order, id)
	}
	return s
}

// IsHidden reports whether id has been dismissed.
func (s *Store) IsHidden(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Hide adds id to the set and flushes it to disk before returning. Hiding
// an id that is already present is a no-op and does not touch the file.
func (s *Store) Hide(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return nil
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	return s.flushLocked()
}

// Len returns the number of dismissed ids.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// flushLocked writes the full set atomically: temp file in the same
// directory, fsync, rename. A crash mid-write leaves the previous file
// intact.
func (s *Store) flushLocked() error {
	content, err := json.Marshal(s.order)
	if err != nil {
		return fmt.Errorf("marshal hide set: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hidden-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
