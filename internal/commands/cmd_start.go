package commands

import (
	"context"
	"fmt"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/validate"
	"github.com/colonyops/refine/internal/engine"
	"github.com/colonyops/refine/pkg/iojson"
	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
)

type StartCmd struct {
	flags *Flags
	app   *engine.App
	tr    *iojson.TextReader

	// flags
	name       string
	id         string
	jsonOutput bool
}

// NewStartCmd creates a new start command
func NewStartCmd(flags *Flags, app *engine.App) *StartCmd {
	return &StartCmd{flags: flags, app: app, tr: &iojson.TextReader{}}
}

// Register adds the start command to the application
func (cmd *StartCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "start",
		Usage:     "Start a session from a C++ snippet",
		UsageText: "refine start [-f file.cpp] [--name name] [--json]",
		Description: `Creates a session whose first version is the snippet, stored verbatim.

The snippet is read from --file or piped on stdin. The session name defaults
to the file name without extension, or to the generated session id.`,
		Flags: []cli.Flag{
			cmd.tr.Flag(),
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "session display name",
				Destination: &cmd.name,
			},
			&cli.StringFlag{
				Name:        "id",
				Usage:       "session id (lowercase alphanumeric, generated if empty)",
				Destination: &cmd.id,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

type startOutput struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Version  int                `json:"version"`
	Findings []analysis.Finding `json:"findings"`
}

func (cmd *StartCmd) run(ctx context.Context, c *cli.Command) error {
	cmd.tr.Limit = int64(cmd.app.Config.Patch.MaxBytes)
	text, err := cmd.tr.Read()
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	name := cmd.name
	if name == "" && cmd.tr.Path() != "" {
		name = session.NameFromPath(cmd.tr.Path())
	}

	checks := []error{criterio.Run("snippet", text, validate.Snippet)}
	if cmd.id != "" {
		checks = append(checks, criterio.Run("id", cmd.id, validate.SessionID))
	}
	if err := criterio.ValidateStruct(checks...); err != nil {
		return fail(cmd.jsonOutput, fmt.Errorf("invalid input: %w", err))
	}

	sess, err := cmd.app.Sessions.Start(ctx, engine.StartOptions{Text: text, Name: name, ID: cmd.id})
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	root, err := cmd.app.Sessions.Current(ctx, sess.ID)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return writeJSON(c, startOutput{
			ID:       sess.ID,
			Name:     sess.Name,
			Version:  root.ID,
			Findings: root.Findings,
		})
	}

	out := c.Root().Writer
	_, _ = fmt.Fprintf(out, "Started session %s (%s)\n", sess.ID, sess.Name)
	_, _ = fmt.Fprintf(out, "Findings in v%d:\n", root.ID)
	printFindings(out, root.Findings)
	return nil
}
