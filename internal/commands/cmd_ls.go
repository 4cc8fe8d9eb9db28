package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

type LsCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
	all        bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags, app *engine.App) *LsCmd {
	return &LsCmd{flags: flags, app: app}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "ls",
		Usage:       "List sessions",
		UsageText:   "refine ls [--all] [--json]",
		Description: "Displays a table of active sessions with their current version, newest first. Use --all to include closed sessions.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "all",
				Aliases:     []string{"a"},
				Usage:       "include closed sessions",
				Destination: &cmd.all,
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

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	sessions, err := cmd.app.Sessions.ListSessions(ctx)
	if err != nil {
		return fail(cmd.jsonOutput, fmt.Errorf("list sessions: %w", err))
	}

	if !cmd.all {
		active := sessions[:0]
		for _, s := range sessions {
			if !s.IsClosed() {
				active = append(active, s)
			}
		}
		sessions = active
	}

	if cmd.jsonOutput {
		if sessions == nil {
			sessions = []session.Session{}
		}
		return writeJSON(c, sessions)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(os.Stderr, "No sessions found\n")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATE\tCURRENT\tUPDATED")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\tv%d\t%s\n",
			s.ID, s.Name, s.State, s.CurrentVersion, s.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}
