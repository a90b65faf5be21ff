// Package persist writes and reads the snapshot file produced by the Persist
// command.
package persist

import "github.com/rogeraird/rgo/internal/models"

// Store is the interface for persisting link snapshots.
type Store interface {
	// Save overwrites the persisted snapshot with snap.
	Save(snap models.Snapshot) error

	// Load returns the persisted snapshot, or nil and no error if nothing
	// has been persisted yet.
	Load() (models.Snapshot, error)

	// Path returns the location used by this store.
	Path() string
}
