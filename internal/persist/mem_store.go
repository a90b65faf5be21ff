package persist

import (
	"sync"

	"github.com/rogeraird/rgo/internal/models"
)

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu    sync.Mutex
	snap  models.Snapshot
	saves int
	err   error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// FailWith makes every later Save return err. Pass nil to stop failing.
func (m *MemStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Save stores a copy of snap.
func (m *MemStore) Save(snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Load returns a copy of the last saved snapshot, or nil.
func (m *MemStore) Load() (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	return m.snap.Clone(), nil
}

// Saves returns how many Save calls succeeded.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

var _ Store = (*MemStore)(nil)
