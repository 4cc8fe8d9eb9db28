package kv

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := New[string, int]()

	s.Set("s1", 3)
	v, ok := s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, s.Len())

	s.Delete("s1")
	_, ok = s.Get("s1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_GetOrLoad_SharesOneLoad(t *testing.T) {
	s := New[string, int]()
	release := make(chan struct{})
	var calls atomic.Int32

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.GetOrLoad("s1", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	// The first loader blocks on release; the others must wait for it.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestStore_GetOrLoad_OtherKeysProceed(t *testing.T) {
	s := New[string, int]()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = s.GetOrLoad("slow", func() (int, error) {
			<-release
			return 1, nil
		})
	}()

	v, err := s.GetOrLoad("fast", func() (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestStore_GetOrLoad_ErrorIsNotCached(t *testing.T) {
	s := New[string, int]()
	boom := errors.New("replay failed")

	_, err := s.GetOrLoad("s1", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())

	v, err := s.GetOrLoad("s1", func() (int, error) { return 5, nil })
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestStore_GetOrLoad_PanicReleasesWaiters(t *testing.T) {
	s := New[string, int]()
	started := make(chan struct{})
	release := make(chan struct{})

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		_, _ = s.GetOrLoad("s1", func() (int, error) {
			close(started)
			<-release
			panic("corrupt record")
		})
	}()

	<-started
	waited := make(chan error, 1)
	go func() {
		_, err := s.GetOrLoad("s1", func() (int, error) { return 9, nil })
		waited <- err
	}()

	close(release)
	assert.Equal(t, "corrupt record", <-panicked)

	select {
	case err := <-waited:
		// The waiter either shared the failed load or ran its own after it.
		if err != nil {
			require.ErrorIs(t, err, ErrLoadPanicked)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after the load panicked")
	}

	v, err := s.GetOrLoad("s1", func() (int, error) { return 9, nil })
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}
