package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/colonyops/refine/internal/core/config"
	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "refine config validate [options]",
				Description: "Validates the configuration file, checking rule overrides, prompt templates, vars files and the suggestion command.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationOutput struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationIssue          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	result := validationOutput{Warnings: cfg.Warnings()}

	if err := cfg.ValidateDeep(cmd.flags.ConfigPath); err != nil {
		var fieldErrs criterio.FieldErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				result.Errors = append(result.Errors, validationIssue{Field: fe.Field, Message: fe.Err.Error()})
			}
		} else {
			result.Errors = append(result.Errors, validationIssue{Message: err.Error()})
		}
	}
	result.Valid = len(result.Errors) == 0

	if cmd.format == "json" {
		if err := writeJSON(c, result); err != nil {
			return err
		}
	} else {
		cmd.outputText(c, result)
	}

	if !result.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *ConfigValidateCmd) outputText(c *cli.Command, result validationOutput) {
	out := c.Root().Writer

	for _, warn := range result.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s: %s\n", warn.Category, warn.Message)
		if warn.Item != "" {
			_, _ = fmt.Fprintf(out, "  Item: %s\n", warn.Item)
		}
	}

	for _, issue := range result.Errors {
		if issue.Field != "" {
			_, _ = fmt.Fprintf(out, "error: %s: %s\n", issue.Field, issue.Message)
		} else {
			_, _ = fmt.Fprintf(out, "error: %s\n", issue.Message)
		}
	}

	_, _ = fmt.Fprintln(out)
	if result.Valid {
		_, _ = fmt.Fprintln(out, "Configuration is valid")
		return
	}
	_, _ = fmt.Fprintf(out, "%d error(s) found\n", len(result.Errors))
}
