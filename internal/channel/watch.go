//go:build linux

package channel

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch recreates the FIFO whenever it is removed or renamed away, then asks
// the reader to reopen so producers and consumer meet on the same inode
// again. It blocks until ctx is cancelled.
func (c *Channel) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("channel: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("channel: watch %s: %w", dir, err)
	}
	target := filepath.Clean(c.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			created, err := Ensure(c.path)
			if err != nil {
				slog.Error("channel: failed to recreate FIFO", "path", c.path, "err", err)
				continue
			}
			if created {
				slog.Warn("channel: FIFO was removed, recreated it", "path", c.path)
			}
			c.Reopen()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("channel: watcher error", "err", err)
		}
	}
}
