package providers

import (
	"testing"

	"github.com/colonyops/refine/internal/core/config"
	"github.com/colonyops/refine/internal/providers/command"
	"github.com/colonyops/refine/internal/providers/openai"
	"github.com/colonyops/refine/pkg/executil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	exec := &executil.RecordingExecutor{}

	t.Run("openai", func(t *testing.T) {
		cfg := config.DefaultConfig()
		c, err := New(&cfg, exec, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &openai.Provider{}, c)
	})

	t.Run("command", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Suggest.Provider = config.ProviderCommand
		cfg.Suggest.Command = []string{"suggest-helper"}
		c, err := New(&cfg, exec, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &command.Provider{}, c)
	})

	t.Run("command without argv", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Suggest.Provider = config.ProviderCommand
		_, err := New(&cfg, exec, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Suggest.Provider = "carrier-pigeon"
		_, err := New(&cfg, exec, zerolog.Nop())
		require.Error(t, err)
	})
}
