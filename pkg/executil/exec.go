// Package executil runs helper processes that exchange data over stdio.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

const maxStderrLen = 500

// ErrOutputTooLarge is returned when a process writes more than the
// executor's MaxOutput to stdout.
var ErrOutputTooLarge = errors.New("output too large")

// Executor runs external programs.
type Executor interface {
	// RunInput feeds stdin to a command and returns its stdout.
	RunInput(ctx context.Context, stdin io.Reader, cmd string, args ...string) ([]byte, error)
}

// RealExecutor runs commands with os/exec. The zero value has no output
// limit and kills the process as soon as ctx ends.
type RealExecutor struct {
	// MaxOutput caps stdout in bytes. Zero means unlimited.
	MaxOutput int64
	// Grace is how long a cancelled process gets between SIGINT and SIGKILL.
	Grace time.Duration
}

// RunInput feeds stdin to a command and returns its stdout. On failure the
// first 500 bytes of stderr are included in the error; the *exec.ExitError
// stays reachable with errors.As.
func (e *RealExecutor) RunInput(ctx context.Context, stdin io.Reader, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdin = stdin
	if e.Grace > 0 {
		c.Cancel = func() error { return c.Process.Signal(os.Interrupt) }
		c.WaitDelay = e.Grace
	}

	var stdout, stderr bytes.Buffer
	out := &cappedWriter{buf: &stdout, max: e.MaxOutput}
	c.Stdout = out
	c.Stderr = &cappedWriter{buf: &stderr, max: maxStderrLen}

	err := c.Run()
	if out.exceeded {
		return nil, fmt.Errorf("exec %s: %w: more than %d bytes", cmd, ErrOutputTooLarge, e.MaxOutput)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("exec %s: %s: %w", cmd, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}

// cappedWriter keeps at most max bytes and discards the rest, so the
// process never blocks on a full pipe.
type cappedWriter struct {
	buf      *bytes.Buffer
	max      int64
	exceeded bool
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	if w.max <= 0 {
		return w.buf.Write(p)
	}

	room := w.max - int64(w.buf.Len())
	if int64(len(p)) <= room {
		return w.buf.Write(p)
	}

	w.exceeded = true
	if room > 0 {
		w.buf.Write(p[:room])
	}
	return len(p), nil
}
