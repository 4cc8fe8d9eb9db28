// Package config handles configuration loading and validation for refine.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// Provider selects the suggestion collaborator implementation.
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderCommand Provider = "command"
)

// IsValid reports whether p names a known provider.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderCommand:
		return true
	default:
		return false
	}
}

// Config holds the application configuration.
type Config struct {
	Analysis  AnalysisConfig `yaml:"analysis"`
	Suggest   SuggestConfig  `yaml:"suggest"`
	Patch     PatchConfig    `yaml:"patch"`
	Database  DatabaseConfig `yaml:"database"`
	Vars      map[string]any `yaml:"vars"`       // passed to the prompt template as .Vars
	VarsFiles []string       `yaml:"vars_files"` // merged before inline vars
	DataDir   string         `yaml:"-"`          // set by caller, not from config file
}

// AnalysisConfig adjusts the built-in rule set.
type AnalysisConfig struct {
	// Disabled lists glob patterns matched against rule ids.
	Disabled []string                `yaml:"disabled"`
	Rules    map[string]RuleOverride `yaml:"rules"`
}

// RuleOverride replaces parts of a built-in rule definition.
type RuleOverride struct {
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"` // text/template over the rule's match vars
}

// SuggestConfig configures the collaborator and the request budget.
type SuggestConfig struct {
	Provider          Provider      `yaml:"provider"`
	Budget            int           `yaml:"budget"`              // bytes of code, findings and goal; 0 disables chunking
	Timeout           time.Duration `yaml:"timeout"`             // per collaborator call
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 disables throttling
	Prompt            string        `yaml:"prompt"`              // prompt template, empty uses the built-in one
	OpenAI            OpenAIConfig  `yaml:"openai"`
	Command           []string      `yaml:"command"` // argv, the request is written to stdin as JSON
}

// OpenAIConfig holds settings for any OpenAI compatible chat endpoint.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// APIKey reads the key from the configured environment variable.
func (o OpenAIConfig) APIKey() string {
	return os.Getenv(o.APIKeyEnv)
}

// PatchConfig bounds candidate size and unified diff rendering.
type PatchConfig struct {
	MaxLines     int `yaml:"max_lines"`
	MaxBytes     int `yaml:"max_bytes"`
	ContextLines int `yaml:"context_lines"`
}

// DatabaseConfig holds sqlite pool settings.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Suggest: SuggestConfig{
			Provider: ProviderOpenAI,
			Budget:   12000,
			Timeout:  60 * time.Second,
			OpenAI: OpenAIConfig{
				BaseURL:     "https://api.groq.com/openai/v1",
				Model:       "llama-3.3-70b-versatile",
				APIKeyEnv:   "GROQ_API_KEY",
				Temperature: 0.2,
				MaxTokens:   4000,
			},
		},
		Patch: PatchConfig{
			MaxLines:     5000,
			MaxBytes:     256 * 1024,
			ContextLines: 3,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
		Vars: map[string]any{},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			if len(cfg.VarsFiles) > 0 {
				fileVars, err := loadVarsFiles(filepath.Dir(configPath), cfg.VarsFiles)
				if err != nil {
					return nil, err
				}
				mergeMaps(fileVars, cfg.Vars)
				cfg.Vars = fileVars
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Suggest.Provider == "" {
		c.Suggest.Provider = defaults.Suggest.Provider
	}
	if c.Suggest.Timeout == 0 {
		c.Suggest.Timeout = defaults.Suggest.Timeout
	}
	if c.Suggest.OpenAI.Model == "" {
		c.Suggest.OpenAI.Model = defaults.Suggest.OpenAI.Model
	}
	if c.Suggest.OpenAI.APIKeyEnv == "" {
		c.Suggest.OpenAI.APIKeyEnv = defaults.Suggest.OpenAI.APIKeyEnv
	}
	if c.Suggest.OpenAI.MaxTokens == 0 {
		c.Suggest.OpenAI.MaxTokens = defaults.Suggest.OpenAI.MaxTokens
	}
	if c.Patch.MaxLines == 0 {
		c.Patch.MaxLines = defaults.Patch.MaxLines
	}
	if c.Patch.MaxBytes == 0 {
		c.Patch.MaxBytes = defaults.Patch.MaxBytes
	}
	if c.Patch.ContextLines == 0 {
		c.Patch.ContextLines = defaults.Patch.ContextLines
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("cannot be empty"))
	}

	if !c.Suggest.Provider.IsValid() {
		errs = errs.Append("suggest.provider", fmt.Errorf("invalid provider %q", c.Suggest.Provider))
	}
	if c.Suggest.Provider == ProviderCommand && len(c.Suggest.Command) == 0 {
		errs = errs.Append("suggest.command", fmt.Errorf("required when provider is %q", ProviderCommand))
	}
	if c.Suggest.Budget < 0 {
		errs = errs.Append("suggest.budget", fmt.Errorf("must not be negative"))
	}
	if c.Suggest.Timeout < 0 {
		errs = errs.Append("suggest.timeout", fmt.Errorf("must not be negative"))
	}
	if c.Suggest.RequestsPerMinute < 0 {
		errs = errs.Append("suggest.requests_per_minute", fmt.Errorf("must not be negative"))
	}
	if t := c.Suggest.OpenAI.Temperature; t < 0 || t > 2 {
		errs = errs.Append("suggest.openai.temperature", fmt.Errorf("must be between 0 and 2"))
	}

	if c.Patch.MaxLines < 1 {
		errs = errs.Append("patch.max_lines", fmt.Errorf("must be at least 1"))
	}
	if c.Patch.MaxBytes < 1 {
		errs = errs.Append("patch.max_bytes", fmt.Errorf("must be at least 1"))
	}
	if c.Patch.ContextLines < 0 {
		errs = errs.Append("patch.context_lines", fmt.Errorf("must not be negative"))
	}

	if c.Database.MaxOpenConns < 1 {
		errs = errs.Append("database.max_open_conns", fmt.Errorf("must be at least 1"))
	}
	if c.Database.MaxIdleConns < 0 || c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = errs.Append("database.max_idle_conns", fmt.Errorf("must be between 0 and max_open_conns"))
	}

	for _, id := range slices.Sorted(maps.Keys(c.Analysis.Rules)) {
		o := c.Analysis.Rules[id]
		if o.Severity != "" && !analysis.Severity(o.Severity).IsValid() {
			errs = errs.Append(fmt.Sprintf("analysis.rules[%q].severity", id), fmt.Errorf("invalid severity %q", o.Severity))
		}
	}

	return errs.ToError()
}

// Overrides converts the analysis rule overrides into analyzer form.
func (a AnalysisConfig) Overrides() map[string]analysis.Override {
	out := make(map[string]analysis.Override, len(a.Rules))
	for id, o := range a.Rules {
		out[id] = analysis.Override{Severity: analysis.Severity(o.Severity), Message: o.Message}
	}
	return out
}

// Registry builds the effective rule registry from the built-in rules.
func (a AnalysisConfig) Registry() (*analysis.Registry, error) {
	return analysis.DefaultRegistry().Configure(a.Overrides(), a.Disabled)
}
