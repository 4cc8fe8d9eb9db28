package commands

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

type HistoryCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
}

// NewHistoryCmd creates a new history command
func NewHistoryCmd(flags *Flags, app *engine.App) *HistoryCmd {
	return &HistoryCmd{flags: flags, app: app}
}

// Register adds the history command to the application
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "List every version of a session",
		UsageText: "refine history <session> [--json]",
		Description: `Lists all versions ordered by id, including branches abandoned by
rollback. The current version is marked with '*'.`,
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

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	entries, err := cmd.app.Sessions.ExportHistory(ctx, id)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return writeJSON(c, entries)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tID\tPARENT\tAUTHOR\tCREATED\tSUMMARY")
	for _, e := range entries {
		mark := ""
		if e.Current {
			mark = "*"
		}
		parent := "-"
		if e.ParentID != nil {
			parent = "v" + strconv.Itoa(*e.ParentID)
		}
		_, _ = fmt.Fprintf(w, "%s\tv%d\t%s\t%s\t%s\t%s\n",
			mark, e.ID, parent, e.Author, e.CreatedAt.Local().Format(time.DateTime), e.Summary)
	}
	return w.Flush()
}
