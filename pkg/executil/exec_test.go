package executil

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_RunInput(t *testing.T) {
	ctx := context.Background()

	t.Run("stdin is forwarded", func(t *testing.T) {
		out, err := (&RealExecutor{}).RunInput(ctx, strings.NewReader("int x;\n"), "cat")
		require.NoError(t, err)
		assert.Equal(t, "int x;\n", string(out))
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := (&RealExecutor{}).RunInput(ctx, nil, "nonexistent-suggest-helper")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exec nonexistent-suggest-helper")
	})

	t.Run("stderr is capped and exit error preserved", func(t *testing.T) {
		script := "printf '%s' \"" + strings.Repeat("A", maxStderrLen*2) + "\" >&2; exit 3"
		_, err := (&RealExecutor{}).RunInput(ctx, nil, "sh", "-c", script)
		require.Error(t, err)

		var exitErr *exec.ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 3, exitErr.ExitCode())
		assert.Contains(t, err.Error(), strings.Repeat("A", maxStderrLen))
		assert.NotContains(t, err.Error(), strings.Repeat("A", maxStderrLen+1))
	})

	t.Run("stdout over the limit", func(t *testing.T) {
		e := &RealExecutor{MaxOutput: 16}
		out, err := e.RunInput(ctx, strings.NewReader(strings.Repeat("x", 64)), "cat")
		require.ErrorIs(t, err, ErrOutputTooLarge)
		assert.Nil(t, out)
	})

	t.Run("stdout at the limit", func(t *testing.T) {
		e := &RealExecutor{MaxOutput: 4}
		out, err := e.RunInput(ctx, strings.NewReader("abcd"), "cat")
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(out))
	})

	t.Run("cancellation interrupts then kills", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		e := &RealExecutor{Grace: 100 * time.Millisecond}
		_, err := e.RunInput(ctx, nil, "sh", "-c", "trap '' INT; sleep 5")
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestRecordingExecutor(t *testing.T) {
	ctx := context.Background()

	t.Run("records calls and stdin", func(t *testing.T) {
		e := &RecordingExecutor{}
		_, _ = e.RunInput(ctx, strings.NewReader(`{"goal":"x"}`), "suggest", "--json")
		_, _ = e.RunInput(ctx, nil, "suggest")

		got := e.Recorded()
		require.Len(t, got, 2)
		assert.Equal(t, []string{"--json"}, got[0].Args)
		assert.JSONEq(t, `{"goal":"x"}`, string(got[0].Stdin))
		assert.Nil(t, got[1].Stdin)
	})

	t.Run("returns configured replies", func(t *testing.T) {
		boom := errors.New("helper crashed")
		e := &RecordingExecutor{
			Outputs: map[string][]byte{"ok": []byte("output")},
			Errors:  map[string]error{"bad": boom},
		}

		out, err := e.RunInput(ctx, nil, "ok")
		require.NoError(t, err)
		assert.Equal(t, "output", string(out))

		_, err = e.RunInput(ctx, nil, "bad")
		require.ErrorIs(t, err, boom)
	})

	t.Run("block honours context", func(t *testing.T) {
		e := &RecordingExecutor{Block: make(chan struct{})}
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := e.RunInput(ctx, nil, "slow")
		require.ErrorIs(t, err, context.Canceled)
	})
}
