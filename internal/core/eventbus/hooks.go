package eventbus

import "sync"

// hookList is a concurrency-safe list of callbacks. Callers iterate over a
// snapshot so a hook may register further hooks without deadlocking.
type hookList[F any] struct {
	mu  sync.RWMutex
	fns []F
}

func (h *hookList[F]) add(fn F) {
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *hookList[F]) snapshot() []F {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]F(nil), h.fns...)
}

type hooks struct {
	publish   hookList[func(Event, any)]
	drop      hookList[func(Event, any)]
	subscribe hookList[func(Event)]
	panic     hookList[func(Event, any, any)]
}

// OnPublish registers fn to run after an event is enqueued.
func (bus *EventBus) OnPublish(fn func(Event, any)) { bus.hooks.publish.add(fn) }

// OnDrop registers fn to run when an event is dropped because the buffer is
// full.
func (bus *EventBus) OnDrop(fn func(Event, any)) { bus.hooks.drop.add(fn) }

// OnSubscribe registers fn to run after a subscriber is added.
func (bus *EventBus) OnSubscribe(fn func(Event)) { bus.hooks.subscribe.add(fn) }

// OnPanic registers fn to run when a subscriber panics. Panics inside fn are
// swallowed.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) { bus.hooks.panic.add(fn) }

// send enqueues an event without blocking.
func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		for _, fn := range bus.hooks.publish.snapshot() {
			fn(event, payload)
		}
	default:
		for _, fn := range bus.hooks.drop.snapshot() {
			fn(event, payload)
		}
	}
}

func (bus *EventBus) runOnPanic(event Event, payload any, recovered any) {
	for _, fn := range bus.hooks.panic.snapshot() {
		func() {
			defer func() { _ = recover() }()
			fn(event, payload, recovered)
		}()
	}
}
