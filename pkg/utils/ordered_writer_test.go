package utils

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedWriter_ReleasesInOrder(t *testing.T) {
	var out bytes.Buffer
	w := NewOrderedWriter(&out, 3)

	_, _ = fmt.Fprint(w.Slot(2), "c")
	_, _ = fmt.Fprint(w.Slot(1), "b")
	w.Done(2)
	w.Done(1)
	assert.Empty(t, out.String(), "slot 0 holds everything back")

	_, _ = fmt.Fprint(w.Slot(0), "a")
	w.Done(0)
	assert.Equal(t, "abc", out.String())
}

func TestOrderedWriter_StreamsPrefix(t *testing.T) {
	var out bytes.Buffer
	w := NewOrderedWriter(&out, 2)

	_, _ = fmt.Fprint(w.Slot(0), "first\n")
	w.Done(0)
	assert.Equal(t, "first\n", out.String())

	_, _ = fmt.Fprint(w.Slot(1), "second\n")
	w.Done(1)
	assert.Equal(t, "first\nsecond\n", out.String())
}

func TestOrderedWriter_Concurrent(t *testing.T) {
	const n = 20

	var out bytes.Buffer
	w := NewOrderedWriter(&out, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintf(w.Slot(i), "%02d;", i)
			w.Done(i)
		}()
	}
	wg.Wait()

	var want bytes.Buffer
	for i := range n {
		fmt.Fprintf(&want, "%02d;", i)
	}
	assert.Equal(t, want.String(), out.String())
	require.NoError(t, w.Err())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestOrderedWriter_KeepsFirstError(t *testing.T) {
	w := NewOrderedWriter(failingWriter{}, 1)
	_, _ = fmt.Fprint(w.Slot(0), "lost")
	w.Done(0)

	require.EqualError(t, w.Err(), "closed pipe")
}
