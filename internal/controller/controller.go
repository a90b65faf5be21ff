// Package controller applies control-plane commands to the link store and
// runs the background loop that feeds it from the command channel.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rogeraird/rgo/internal/events"
	"github.com/rogeraird/rgo/internal/metrics"
	"github.com/rogeraird/rgo/internal/models"
	"github.com/rogeraird/rgo/internal/persist"
	"github.com/rogeraird/rgo/internal/store"
)

// Controller is the single writer of the link store.
// Reads from the HTTP layer go straight to the store through Lookup and
// Snapshot; every mutation goes through Apply.
type Controller struct {
	store   *store.Store
	persist persist.Store
	bus     *events.Bus
	metrics *metrics.Metrics
}

// New creates a Controller. bus and m may be nil.
func New(st *store.Store, ps persist.Store, bus *events.Bus, m *metrics.Metrics) (*Controller, error) {
	if st == nil {
		return nil, errors.New("controller: store is required")
	}
	if ps == nil {
		return nil, errors.New("controller: persist store is required")
	}
	if bus == nil {
		bus = events.NewBus()
	}
	c := &Controller{
		store:   st,
		persist: ps,
		bus:     bus,
		metrics: m,
	}
	if n, err := st.Len(); err == nil {
		m.SetLinks(n)
	}
	return c, nil
}

// Apply dispatches cmd:
//   - Add inserts, Remove deletes, both publish the new snapshot;
//   - List takes a snapshot, logs it and publishes it;
//   - Persist writes a snapshot to the persist store.
//
// Errors are returned for logging; none of them leave the store locked.
func (c *Controller) Apply(ctx context.Context, cmd models.Command) error {
	if cmd == nil {
		return errors.New("controller: nil command")
	}
	kind := string(cmd.Kind())
	if err := c.apply(ctx, cmd); err != nil {
		c.metrics.CommandFailed(kind)
		return fmt.Errorf("controller: apply %s: %w", kind, err)
	}
	c.metrics.CommandApplied(kind)
	return nil
}

func (c *Controller) apply(ctx context.Context, cmd models.Command) error {
	switch cmd := cmd.(type) {
	case models.Add:
		if err := c.store.Insert(cmd.Key, cmd.Value); err != nil {
			return err
		}
		slog.Info("controller: link added", "key", cmd.Key, "url", cmd.Value)
		return c.publish()

	case models.Remove:
		existed, err := c.store.Remove(cmd.Key)
		if err != nil {
			return err
		}
		slog.Info("controller: link removed", "key", cmd.Key, "existed", existed)
		return c.publish()

	case models.List:
		snap, err := c.store.Snapshot()
		if err != nil {
			return err
		}
		slog.Info("controller: links", "count", len(snap), "links", snap)
		c.bus.Publish(snap)
		return nil

	case models.Persist:
		return c.persistSnapshot(ctx)
	}
	return fmt.Errorf("unknown command %T", cmd)
}

// persistSnapshot copies the table under the lock and writes it after the
// lock is released.
func (c *Controller) persistSnapshot(ctx context.Context) error {
	snap, err := c.store.Snapshot()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.persist.Save(snap); err != nil {
		c.metrics.PersistFailed()
		slog.Error("controller: failed to persist snapshot", "path", c.persist.Path(), "err", err)
		return err
	}
	slog.Info("controller: snapshot persisted", "path", c.persist.Path(), "count", len(snap))
	return nil
}

func (c *Controller) publish() error {
	snap, err := c.store.Snapshot()
	if err != nil {
		return err
	}
	c.metrics.SetLinks(len(snap))
	c.bus.Publish(snap)
	return nil
}

// Restore replaces the table with the persisted snapshot, if there is one.
// It reports how many links were loaded.
func (c *Controller) Restore() (int, error) {
	snap, err := c.persist.Load()
	if err != nil {
		return 0, err
	}
	if snap == nil {
		return 0, nil
	}
	if err := c.store.Replace(snap); err != nil {
		return 0, err
	}
	if err := c.publish(); err != nil {
		return 0, err
	}
	return len(snap), nil
}

// Lookup returns the target URL for key.
func (c *Controller) Lookup(key string) (string, bool, error) {
	return c.store.Get(key)
}

// Snapshot returns a copy of the link table.
func (c *Controller) Snapshot() (models.Snapshot, error) {
	return c.store.Snapshot()
}

// Healthy reports false while the store lock is poisoned.
func (c *Controller) Healthy() bool {
	return !c.store.Poisoned()
}
