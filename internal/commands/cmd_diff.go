package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/engine"
	"github.com/urfave/cli/v3"
)

type DiffCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	against    int
	unified    bool
	jsonOutput bool
}

// NewDiffCmd creates a new diff command
func NewDiffCmd(flags *Flags, app *engine.App) *DiffCmd {
	return &DiffCmd{flags: flags, app: app}
}

// Register adds the diff command to the application
func (cmd *DiffCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "diff",
		Usage:     "Show the changes a version introduced",
		UsageText: "refine diff <session> <version> [--against <version>] [--unified] [--json]",
		Description: `Prints the line diff from the version's parent to the version, or from
--against to the version when given. The root version diffs against the
empty text.

--unified renders a standard unified diff for review tools. The hunks in
--json output are the stored edit script.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "against",
				Aliases:     []string{"a"},
				Usage:       "diff from this version instead of the parent",
				Destination: &cmd.against,
			},
			&cli.BoolFlag{
				Name:        "unified",
				Aliases:     []string{"u"},
				Usage:       "render as a unified diff",
				Destination: &cmd.unified,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output hunks as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		ShellComplete: SessionIDCompleter(cmd.app),
		Action:        cmd.run,
	})

	return app
}

func (cmd *DiffCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}
	versionID, err := versionArg(c, 1)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	var (
		hunks []patch.Hunk
		from  string
	)
	if cmd.against > 0 {
		hunks, err = cmd.app.Sessions.DiffBetween(ctx, id, cmd.against, versionID)
		from = fmt.Sprintf("v%d", cmd.against)
	} else {
		hunks, err = cmd.app.Sessions.GetDiff(ctx, id, versionID)
		from = "parent"
	}
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return writeJSON(c, hunks)
	}

	out := c.Root().Writer
	if cmd.unified {
		text, err := patch.Unified(hunks, patch.UnifiedOptions{
			OrigName: fmt.Sprintf("%s/%s", id, from),
			NewName:  fmt.Sprintf("%s/v%d", id, versionID),
			Context:  cmd.app.Config.Patch.ContextLines,
		})
		if err != nil {
			return fmt.Errorf("render unified diff: %w", err)
		}
		_, _ = fmt.Fprint(out, text)
		return nil
	}

	if patch.OnlyEqual(hunks) {
		_, _ = fmt.Fprintln(out, "No changes")
		return nil
	}
	for _, h := range hunks {
		if h.Kind == patch.KindEqual {
			continue
		}
		mark := "+"
		if h.Kind == patch.KindDelete {
			mark = "-"
		}
		_, _ = fmt.Fprintf(out, "%s\n", h)
		for _, l := range h.Lines {
			_, _ = fmt.Fprintf(out, "%s %s\n", mark, strings.TrimRight(l, "\r\n"))
		}
	}
	_, _ = fmt.Fprintf(out, "\n%s\n", patch.Stats(hunks))
	return nil
}
