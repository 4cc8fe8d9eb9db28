package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T, size int) *EventBus {
	t.Helper()
	bus := New(size)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return bus
}

func TestEventBus_DeliversTypedPayloads(t *testing.T) {
	bus := startBus(t, 8)

	got := make(chan SessionRolledBackPayload, 1)
	bus.SubscribeSessionRolledBack(func(p SessionRolledBackPayload) { got <- p })

	bus.PublishSessionRolledBack(SessionRolledBackPayload{SessionID: "s1", From: 3, To: 1})

	select {
	case p := <-got:
		assert.Equal(t, SessionRolledBackPayload{SessionID: "s1", From: 3, To: 1}, p)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := New(1)

	var mu sync.Mutex
	var dropped []Event
	bus.OnDrop(func(e Event, _ any) {
		mu.Lock()
		dropped = append(dropped, e)
		mu.Unlock()
	})

	bus.PublishSessionClosed(SessionClosedPayload{SessionID: "a"})
	bus.PublishSessionClosed(SessionClosedPayload{SessionID: "b"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Event{EventSessionClosed}, dropped)
}

func TestEventBus_SubscriberPanicIsContained(t *testing.T) {
	bus := startBus(t, 8)

	panicked := make(chan any, 1)
	bus.OnPanic(func(_ Event, _ any, r any) { panicked <- r })

	delivered := make(chan struct{}, 1)
	bus.SubscribeSessionClosed(func(SessionClosedPayload) { panic("boom") })
	bus.SubscribeSessionClosed(func(SessionClosedPayload) { delivered <- struct{}{} })

	bus.PublishSessionClosed(SessionClosedPayload{SessionID: "a"})

	select {
	case r := <-panicked:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic hook not called")
	}

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second subscriber not called")
	}
}

func TestEventBus_StartDrainsOnCancel(t *testing.T) {
	bus := New(4)

	var mu sync.Mutex
	var seen []string
	bus.SubscribeSessionClosed(func(p SessionClosedPayload) {
		mu.Lock()
		seen = append(seen, p.SessionID)
		mu.Unlock()
	})

	bus.PublishSessionClosed(SessionClosedPayload{SessionID: "a"})
	bus.PublishSessionClosed(SessionClosedPayload{SessionID: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Start(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"a", "b"}, seen)
}
