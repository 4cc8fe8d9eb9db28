package executil

import (
	"context"
	"io"
	"slices"
	"sync"
)

// Call is one recorded RunInput invocation.
type Call struct {
	Cmd   string
	Args  []string
	Stdin []byte
}

// RecordingExecutor records calls instead of running them. Replies are
// looked up by command name.
type RecordingExecutor struct {
	// Outputs maps command names to their stdout.
	Outputs map[string][]byte
	// Errors maps command names to their error.
	Errors map[string]error
	// Block, when set, holds every call until it is closed or ctx ends.
	Block chan struct{}

	mu    sync.Mutex
	calls []Call
}

// RunInput records the call with its full stdin.
func (e *RecordingExecutor) RunInput(ctx context.Context, stdin io.Reader, cmd string, args ...string) ([]byte, error) {
	var in []byte
	if stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		in = data
	}

	e.mu.Lock()
	e.calls = append(e.calls, Call{Cmd: cmd, Args: args, Stdin: in})
	e.mu.Unlock()

	if e.Block != nil {
		select {
		case <-e.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return e.Outputs[cmd], e.Errors[cmd]
}

// Recorded returns the calls so far.
func (e *RecordingExecutor) Recorded() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}
