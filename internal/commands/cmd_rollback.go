package commands

import (
	"context"
	"fmt"

	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

type RollbackCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewRollbackCmd creates a new rollback command
func NewRollbackCmd(flags *Flags, app *engine.App) *RollbackCmd {
	return &RollbackCmd{flags: flags, app: app}
}

// Register adds the rollback command to the application
func (cmd *RollbackCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "rollback",
		Usage:     "Make an earlier version current",
		UsageText: "refine rollback <session> <version> [--json]",
		Description: `Moves the session's current version pointer. Nothing is deleted: the next
round creates a new child of the selected version and the abandoned branch
stays visible in 'refine history'.`,
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

type rollbackOutput struct {
	SessionID string `json:"session_id"`
	Current   int    `json:"current"`
}

func (cmd *RollbackCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}
	versionID, err := versionArg(c, 1)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if err := cmd.app.Sessions.Rollback(ctx, id, versionID); err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return writeJSON(c, rollbackOutput{SessionID: id, Current: versionID})
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Session %s is now at v%d\n", id, versionID)
	return nil
}
