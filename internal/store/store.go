// Package store holds the link table shared by the command consumer and the
// HTTP handlers.
//
// A single mutex guards the table. Every critical section covers exactly one
// map operation or one copy, never I/O. A panic inside a critical section
// poisons the store: the failing caller receives a PoisonError and the next
// caller clears the flag and proceeds, so one failure cannot wedge every
// later request.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/rogeraird/rgo/internal/models"
)

// ErrPoisoned is matched by every PoisonError.
var ErrPoisoned = errors.New("store: lock poisoned")

// PoisonError is returned to the caller whose critical section panicked.
type PoisonError struct {
	Op    string
	Cause any
}

func (e *PoisonError) Error() string {
	return fmt.Sprintf("store: %s panicked while holding the lock: %v", e.Op, e.Cause)
}

func (e *PoisonError) Unwrap() error { return ErrPoisoned }

// Store is the key to target-URL table.
type Store struct {
	mu       sync.Mutex
	links    map[string]string
	poisoned bool
}

// New creates a store holding a copy of seed.
func New(seed models.Snapshot) *Store {
	links := make(map[string]string, len(seed))
	maps.Copy(links, seed)
	return &Store{links: links}
}

// Get returns the target for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var (
		url string
		ok  bool
	)
	err := s.critical("get", func(links map[string]string) {
		url, ok = links[key]
	})
	return url, ok, err
}

// Insert maps key to value, overwriting any previous target.
func (s *Store) Insert(key, value string) error {
	return s.critical("insert", func(links map[string]string) {
		links[key] = value
	})
}

// Remove deletes key and reports whether it was present.
func (s *Store) Remove(key string) (bool, error) {
	var existed bool
	err := s.critical("remove", func(links map[string]string) {
		_, existed = links[key]
		delete(links, key)
	})
	return existed, err
}

// Snapshot returns a copy of the table, never a live view.
func (s *Store) Snapshot() (models.Snapshot, error) {
	var snap models.Snapshot
	err := s.critical("snapshot", func(links map[string]string) {
		snap = maps.Clone(links)
	})
	if snap == nil {
		snap = models.Snapshot{}
	}
	return snap, err
}

// Replace swaps the whole table for a copy of snap.
func (s *Store) Replace(snap models.Snapshot) error {
	links := make(map[string]string, len(snap))
	maps.Copy(links, snap)
	return s.critical("replace", func(map[string]string) {
		s.links = links
	})
}

// Len returns the number of stored links.
func (s *Store) Len() (int, error) {
	var n int
	err := s.critical("len", func(links map[string]string) {
		n = len(links)
	})
	return n, err
}

// Poisoned reports whether the last critical section panicked and no caller
// has acquired the lock since.
func (s *Store) Poisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned
}

// critical runs fn with the lock held. Deferred calls run in reverse order,
// so the panic is recovered and recorded before the lock is released.
func (s *Store) critical(op string, fn func(links map[string]string)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		slog.Warn("store: clearing poisoned lock", "op", op)
		s.poisoned = false
	}

	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			err = &PoisonError{Op: op, Cause: r}
			slog.Error("store: operation panicked", "op", op, "panic", r)
		}
	}()

	fn(s.links)
	return nil
}
