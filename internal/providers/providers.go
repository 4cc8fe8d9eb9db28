// Package providers builds the configured suggestion collaborator.
package providers

import (
	"fmt"

	"github.com/colonyops/refine/internal/core/config"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/colonyops/refine/internal/providers/command"
	"github.com/colonyops/refine/internal/providers/openai"
	"github.com/colonyops/refine/pkg/executil"
	"github.com/rs/zerolog"
)

// New returns the collaborator selected by cfg.Suggest.Provider.
func New(cfg *config.Config, exec executil.Executor, log zerolog.Logger) (suggest.Collaborator, error) {
	switch cfg.Suggest.Provider {
	case config.ProviderOpenAI:
		o := cfg.Suggest.OpenAI
		return openai.New(openai.Options{
			BaseURL:     o.BaseURL,
			APIKey:      o.APIKey(),
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
			Prompt:      cfg.Suggest.Prompt,
			Vars:        cfg.Vars,
		}, log.With().Str("provider", "openai").Logger()), nil
	case config.ProviderCommand:
		return command.New(exec, command.Options{
			Command: cfg.Suggest.Command,
			Prompt:  cfg.Suggest.Prompt,
			Vars:    cfg.Vars,
		}, log.With().Str("provider", "command").Logger())
	default:
		return nil, fmt.Errorf("unknown suggest provider %q", cfg.Suggest.Provider)
	}
}
