// Package testbus wraps a running EventBus with a recorder for tests.
package testbus

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/refine/internal/core/eventbus"
)

// Published is one recorded event.
type Published struct {
	Event   eventbus.Event
	Payload any
}

// Bus is a started EventBus that records every published event. Recording
// happens at publish time, so assertions do not race the dispatch goroutine.
type Bus struct {
	*eventbus.EventBus

	mu        sync.Mutex
	published []Published
}

// New starts a bus that stops when t finishes.
func New(t *testing.T) *Bus {
	t.Helper()

	tb := &Bus{EventBus: eventbus.New(64)}
	tb.OnPublish(func(event eventbus.Event, payload any) {
		tb.mu.Lock()
		tb.published = append(tb.published, Published{Event: event, Payload: payload})
		tb.mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tb.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return tb
}

// Events returns the recorded events in publish order.
func (tb *Bus) Events() []Published {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return slices.Clone(tb.published)
}

// Payloads returns the payloads recorded for event in publish order.
func (tb *Bus) Payloads(event eventbus.Event) []any {
	var out []any
	for _, p := range tb.Events() {
		if p.Event == event {
			out = append(out, p.Payload)
		}
	}
	return out
}

// Last returns the newest payload of type T, if any.
func Last[T any](tb *Bus) (T, bool) {
	events := tb.Events()
	for _, p := range slices.Backward(events) {
		if v, ok := p.Payload.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// WaitFor polls until event is recorded or timeout passes.
func (tb *Bus) WaitFor(event eventbus.Event, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if len(tb.Payloads(event)) > 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// AssertPublished fails t unless event is recorded within half a second.
func (tb *Bus) AssertPublished(t *testing.T, event eventbus.Event) {
	t.Helper()
	if !tb.WaitFor(event, 500*time.Millisecond) {
		t.Errorf("event %q was not published", event)
	}
}
