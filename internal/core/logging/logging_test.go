package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestContextHook(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		want   map[string]any
		absent []string
	}{
		{
			name: "full round",
			ctx:  WithRound(context.Background(), Round{SessionID: "s1", RoundID: "r1", BaseVersion: 3}),
			want: map[string]any{"session_id": "s1", "round_id": "r1", "base_version": float64(3)},
		},
		{
			name:   "session only",
			ctx:    WithRound(context.Background(), Round{SessionID: "s1"}),
			want:   map[string]any{"session_id": "s1"},
			absent: []string{"round_id", "base_version"},
		},
		{
			name:   "no round",
			ctx:    context.Background(),
			absent: []string{"session_id", "round_id", "base_version"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(tt.ctx).Msg("round event")

			entry := decode(t, &buf)
			for k, v := range tt.want {
				assert.Equal(t, v, entry[k], k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, entry, k)
			}
		})
	}
}

func TestRoundFrom(t *testing.T) {
	_, ok := RoundFrom(context.Background())
	assert.False(t, ok)

	r, ok := RoundFrom(WithRound(context.Background(), Round{RoundID: "r9"}))
	require.True(t, ok)
	assert.Equal(t, "r9", r.RoundID)
}

func TestInstallAndComponent(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	Install(zerolog.New(&buf))

	ctx := WithRound(context.Background(), Round{SessionID: "s2"})
	l := Component("engine")
	l.Info().Ctx(ctx).Msg("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "engine", entry["cmp"])
	assert.Equal(t, "s2", entry["session_id"])
}
