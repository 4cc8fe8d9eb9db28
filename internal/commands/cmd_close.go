package commands

import (
	"context"
	"fmt"

	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

type CloseCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewCloseCmd creates a new close command
func NewCloseCmd(flags *Flags, app *engine.App) *CloseCmd {
	return &CloseCmd{flags: flags, app: app}
}

// Register adds the close command to the application
func (cmd *CloseCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "close",
		Usage:       "Close a session",
		UsageText:   "refine close <session> [--json]",
		Description: "Closes a session. Its history stays readable but no further rounds or rollbacks are accepted.",
		Flags: []cli.Flag{
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

func (cmd *CloseCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if err := cmd.app.Sessions.CloseSession(ctx, id); err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return writeJSON(c, map[string]string{"session_id": id, "state": "closed"})
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Closed session %s\n", id)
	return nil
}
