package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rogeraird/rgo/internal/codec"
	"github.com/rogeraird/rgo/internal/models"
)

// FileStore keeps the snapshot as a MessagePack map in a single file.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path used by this store.
func (s *FileStore) Path() string { return s.path }

// Save replaces the file contents with snap. The data goes to a temp file
// first and is renamed over the target, so readers see either the old or
// the new snapshot.
func (s *FileStore) Save(snap models.Snapshot) error {
	data := codec.EncodeSnapshot(snap)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("persist: create dir: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("persist: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("persist: rename %s: %w", tmpPath, err)
	}
	return nil
}

// Load reads the snapshot back. A missing file yields nil, nil.
func (s *FileStore) Load() (models.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: read %s: %w", s.path, err)
	}

	snap, err := codec.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("persist: corrupt snapshot %s: %w", s.path, err)
	}
	return snap, nil
}

var _ Store = (*FileStore)(nil)
