package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/refine/internal/core/version"
	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

type ShowCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
	codeOnly   bool
}

// NewShowCmd creates a new show command
func NewShowCmd(flags *Flags, app *engine.App) *ShowCmd {
	return &ShowCmd{flags: flags, app: app}
}

// Register adds the show command to the application
func (cmd *ShowCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "show",
		Usage:     "Show a version of a session",
		UsageText: "refine show <session> [version] [--code] [--json]",
		Description: `Prints a version's metadata, the explanation of the change, its findings
and its text. Without a version the current one is shown.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "code",
				Usage:       "print only the snippet text",
				Destination: &cmd.codeOnly,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		ShellComplete: SessionIDCompleter(cmd.app),
		Action:        cmd.run,
	})

	return app
}

func (cmd *ShowCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	var v version.Version
	if c.Args().Len() > 1 {
		versionID, err := versionArg(c, 1)
		if err != nil {
			return fail(cmd.jsonOutput, err)
		}
		v, err = cmd.app.Sessions.GetVersion(ctx, id, versionID)
		if err != nil {
			return fail(cmd.jsonOutput, err)
		}
	} else {
		v, err = cmd.app.Sessions.Current(ctx, id)
		if err != nil {
			return fail(cmd.jsonOutput, err)
		}
	}

	if cmd.jsonOutput {
		return writeJSON(c, v)
	}

	out := c.Root().Writer
	if cmd.codeOnly {
		_, _ = fmt.Fprint(out, v.Text)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Version:  v%d\n", v.ID)
	if !v.IsRoot() {
		_, _ = fmt.Fprintf(out, "Parent:   v%d\n", v.ParentID)
	}
	_, _ = fmt.Fprintf(out, "Author:   %s\n", v.Author)
	_, _ = fmt.Fprintf(out, "Created:  %s\n", v.CreatedAt.Local().Format(time.DateTime))
	if v.Goal != "" {
		_, _ = fmt.Fprintf(out, "Goal:     %s\n", v.Goal)
	}
	if v.Rationale != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", v.Rationale)
	}
	_, _ = fmt.Fprintln(out, "\nFindings:")
	printFindings(out, v.Findings)
	_, _ = fmt.Fprintf(out, "\n%s", v.Text)
	return nil
}
