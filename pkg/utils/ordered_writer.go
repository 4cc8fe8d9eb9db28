package utils

import (
	"bytes"
	"io"
	"sync"
)

// OrderedWriter collects output from n concurrent producers and writes it to
// the underlying writer in producer order. A slot's output is released once
// it and every slot before it are marked done, so early finishers stream
// without waiting for the whole set. Safe for concurrent use.
type OrderedWriter struct {
	mu    sync.Mutex
	out   io.Writer
	slots []bytes.Buffer
	done  []bool
	next  int
	err   error
}

// NewOrderedWriter returns a writer with n slots in front of out.
func NewOrderedWriter(out io.Writer, n int) *OrderedWriter {
	return &OrderedWriter{
		out:   out,
		slots: make([]bytes.Buffer, n),
		done:  make([]bool, n),
	}
}

// Slot returns the writer for producer i.
func (o *OrderedWriter) Slot(i int) io.Writer {
	return slotWriter{o: o, i: i}
}

// Done marks slot i complete and flushes every ready slot.
func (o *OrderedWriter) Done(i int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.done[i] = true
	for o.next < len(o.slots) && o.done[o.next] {
		if _, err := o.slots[o.next].WriteTo(o.out); err != nil && o.err == nil {
			o.err = err
		}
		o.next++
	}
}

// Err returns the first error from the underlying writer.
func (o *OrderedWriter) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

type slotWriter struct {
	o *OrderedWriter
	i int
}

func (s slotWriter) Write(p []byte) (int, error) {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	return s.o.slots[s.i].Write(p)
}
