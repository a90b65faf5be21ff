package events_test

import (
	"testing"
	"time"

	"github.com/rogeraird/rgo/internal/events"
	"github.com/rogeraird/rgo/internal/models"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := events.NewBus()

	ch := bus.Subscribe("test1")
	bus.Publish(models.Snapshot{"a": "http://example.com"})

	select {
	case got := <-ch:
		if got["a"] != "http://example.com" {
			t.Errorf("got %v, want a -> http://example.com", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusSubscribersGetIndependentCopies(t *testing.T) {
	bus := events.NewBus()
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")

	bus.Publish(models.Snapshot{"k": "v"})

	first := <-a
	first["k"] = "mutated"
	if second := <-b; second["k"] != "v" {
		t.Errorf("subscriber b saw %q, snapshots are shared", second["k"])
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("test-unsub")

	bus.Unsubscribe("test-unsub")

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusDropsEventsWhenFull(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe("slow-reader")

	// Publish many events without reading; should not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			bus.Publish(models.DefaultSeed())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Publish blocked for too long (should drop events)")
	}

	bus.Unsubscribe("slow-reader")
	n := 0
	for range ch {
		n++
	}
	if n == 0 || n >= 20 {
		t.Errorf("slow reader buffered %d snapshots, want some dropped", n)
	}
}

func TestBusSubscriberCount(t *testing.T) {
	bus := events.NewBus()
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
	bus.Subscribe("s1")
	bus.Subscribe("s2")
	if n := bus.SubscriberCount(); n != 2 {
		t.Errorf("expected 2 subscribers, got %d", n)
	}
	bus.Unsubscribe("s1")
	if n := bus.SubscriberCount(); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := events.NewBus()
	a := bus.Subscribe("a")
	b := bus.Subscribe("b")

	bus.Close()
	bus.Close()

	for name, ch := range map[string]<-chan models.Snapshot{"a": a, "b": b} {
		if _, ok := <-ch; ok {
			t.Errorf("subscriber %s still open after Close", name)
		}
	}
	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount after Close = %d", n)
	}

	late := bus.Subscribe("late")
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close returned an open channel")
	}
	bus.Publish(models.DefaultSeed())
	bus.Unsubscribe("late")
}

func TestBusResubscribeReplaces(t *testing.T) {
	bus := events.NewBus()
	first := bus.Subscribe("dup")
	second := bus.Subscribe("dup")

	if _, ok := <-first; ok {
		t.Error("earlier subscription not closed")
	}
	bus.Publish(models.Snapshot{"k": "v"})
	if got := <-second; got["k"] != "v" {
		t.Errorf("got %v", got)
	}
	if n := bus.SubscriberCount(); n != 1 {
		t.Errorf("SubscriberCount = %d, want 1", n)
	}
}
