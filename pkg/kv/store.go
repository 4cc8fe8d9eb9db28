// Package kv provides a generic concurrency-safe map with per-key loading.
package kv

import (
	"errors"
	"sync"
)

// ErrLoadPanicked is returned to callers that waited on a load whose
// function panicked.
var ErrLoadPanicked = errors.New("kv: load panicked")

// Store is a map safe for concurrent use. GetOrLoad deduplicates loads per
// key without blocking access to other keys.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	data    map[K]V
	loading map[K]*load[V]
}

type load[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// New creates an empty store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		data:    make(map[K]V),
		loading: make(map[K]*load[V]),
	}
}

// Get returns the value stored for key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	return val, ok
}

// Set stores value for key.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Len returns the number of stored values.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// GetOrLoad returns the value for key, running fn to produce it when absent.
// Concurrent callers for the same missing key share one fn call; callers for
// other keys are not held up by it. A failed load stores nothing. If fn
// panics, waiters are released with an error and the panic propagates.
func (s *Store[K, V]) GetOrLoad(key K, fn func() (V, error)) (V, error) {
	s.mu.Lock()
	if val, ok := s.data[key]; ok {
		s.mu.Unlock()
		return val, nil
	}
	if l, ok := s.loading[key]; ok {
		s.mu.Unlock()
		<-l.done
		return l.val, l.err
	}
	l := &load[V]{done: make(chan struct{}), err: ErrLoadPanicked}
	s.loading[key] = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.loading, key)
		if l.err == nil {
			s.data[key] = l.val
		}
		s.mu.Unlock()
		close(l.done)
	}()

	l.val, l.err = fn()
	return l.val, l.err
}
