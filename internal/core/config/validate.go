package config

import (
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// rule overrides, the prompt template, and file accessibility. The configPath
// argument specifies the config file location to validate (empty string skips
// the config file check). This calls Validate() first for basic structural
// validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateVarsFiles(configPath),
		c.validateAnalysis(),
		c.validatePrompt(),
		c.validateCommand(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Suggest.Provider == ProviderOpenAI && c.Suggest.OpenAI.APIKey() == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Suggest",
			Item:     "openai",
			Message:  fmt.Sprintf("environment variable %s is not set", c.Suggest.OpenAI.APIKeyEnv),
		})
	}

	ids := make([]string, 0)
	for _, def := range analysis.DefaultRegistry().Definitions() {
		ids = append(ids, def.ID)
	}
	for _, pattern := range c.Analysis.Disabled {
		matched := slices.ContainsFunc(ids, func(id string) bool {
			ok, _ := doublestar.Match(pattern, id)
			return ok
		})
		if !matched {
			warnings = append(warnings, ValidationWarning{
				Category: "Analysis",
				Item:     pattern,
				Message:  "disable pattern matches no rule",
			})
		}
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func (c *Config) validateVarsFiles(configPath string) error {
	if len(c.VarsFiles) == 0 {
		return nil
	}

	configDir := filepath.Dir(configPath)
	var errs criterio.FieldErrorsBuilder

	for i, entry := range c.VarsFiles {
		field := fmt.Sprintf("vars_files[%d]", i)
		files, err := expandVarsEntry(configDir, entry)
		if err != nil {
			errs = errs.Append(field, err)
			continue
		}
		for _, file := range files {
			if _, err := os.Stat(file); err != nil {
				errs = errs.Append(field, fmt.Errorf("file not found: %s", file))
			}
		}
	}

	return errs.ToError()
}

// validateAnalysis checks disable globs, override targets and override
// message templates against the built-in rule set.
func (c *Config) validateAnalysis() error {
	var errs criterio.FieldErrorsBuilder

	for i, pattern := range c.Analysis.Disabled {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("analysis.disabled[%d]", i), fmt.Errorf("invalid glob %q", pattern))
		}
	}

	known := make(map[string]bool)
	for _, def := range analysis.DefaultRegistry().Definitions() {
		known[def.ID] = true
	}

	for _, id := range slices.Sorted(maps.Keys(c.Analysis.Rules)) {
		o := c.Analysis.Rules[id]
		field := fmt.Sprintf("analysis.rules[%q]", id)
		if !known[id] {
			errs = errs.Append(field, fmt.Errorf("unknown rule"))
			continue
		}
		if o.Message != "" {
			if err := analysis.CheckMessage(o.Message); err != nil {
				errs = errs.Append(field+".message", fmt.Errorf("template error: %w", err))
			}
		}
	}

	return errs.ToError()
}

// validatePrompt renders the configured prompt against a sample request.
func (c *Config) validatePrompt() error {
	if c.Suggest.Prompt == "" {
		return nil
	}

	sample := suggest.NewBuilder(0).Build("int main() { return 0; }\n", nil, "sample goal")
	if _, err := sample.Render(c.Suggest.Prompt, c.Vars); err != nil {
		return criterio.NewFieldErrors("suggest.prompt", fmt.Errorf("template error: %w", err))
	}
	return nil
}

// validateCommand checks that the command collaborator is executable.
func (c *Config) validateCommand() error {
	if c.Suggest.Provider != ProviderCommand || len(c.Suggest.Command) == 0 {
		return nil
	}
	return criterio.Run("suggest.command[0]", c.Suggest.Command[0], executableExists)
}

func executableExists(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("executable not found: %s", path)
	}
	return nil
}
