// Package events fans link-table snapshots out to SSE subscribers.
package events

import (
	"sync"

	"github.com/rogeraird/rgo/internal/models"
)

// subBufferSize is how many snapshots a slow subscriber may lag behind
// before newer ones are dropped for it.
const subBufferSize = 8

// Bus delivers published snapshots to every subscriber without blocking the
// publisher.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan models.Snapshot
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan models.Snapshot)}
}

// Subscribe registers id and returns its delivery channel. The channel is
// closed by Unsubscribe or Close; after Close it is returned already closed.
// Subscribing an id twice replaces the earlier subscription.
func (b *Bus) Subscribe(id string) <-chan models.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.Snapshot, subBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	if old, ok := b.subs[id]; ok {
		close(old)
	}
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes id and closes its channel. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish hands each subscriber its own copy of snap. A subscriber whose
// buffer is full misses this snapshot.
func (b *Bus) Publish(snap models.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- snap.Clone():
		default:
		}
	}
}

// Close ends every subscription, which lets open SSE streams return during
// server shutdown. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
