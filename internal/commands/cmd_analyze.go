package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/validate"
	"github.com/colonyops/refine/internal/engine"
	"github.com/colonyops/refine/pkg/iojson"
	"github.com/urfave/cli/v3"
)

type AnalyzeCmd struct {
	flags *Flags
	app   *engine.App
	tr    *iojson.TextReader

	// flags
	jsonOutput bool
}

// NewAnalyzeCmd creates a new analyze command
func NewAnalyzeCmd(flags *Flags, app *engine.App) *AnalyzeCmd {
	return &AnalyzeCmd{flags: flags, app: app, tr: &iojson.TextReader{}}
}

// Register adds the analyze and rules commands to the application
func (cmd *AnalyzeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:        "analyze",
			Usage:       "Report findings for a snippet without starting a session",
			UsageText:   "refine analyze [-f file.cpp] [--json]",
			Description: "Runs the static analyzer over --file or stdin and prints its findings ordered by line.",
			Flags: []cli.Flag{
				cmd.tr.Flag(),
				&cli.BoolFlag{
					Name:        "json",
					Usage:       "output as JSON",
					Destination: &cmd.jsonOutput,
				},
			},
			Action: cmd.runAnalyze,
		},
		&cli.Command{
			Name:        "rules",
			Usage:       "List the analyzer rules",
			UsageText:   "refine rules [--json]",
			Description: "Lists the enabled rules with their category, severity and message after config overrides.",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "json",
					Usage:       "output as JSON",
					Destination: &cmd.jsonOutput,
				},
			},
			Action: cmd.runRules,
		},
	)

	return app
}

func (cmd *AnalyzeCmd) runAnalyze(ctx context.Context, c *cli.Command) error {
	text, err := cmd.tr.Read()
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}
	if err := validate.Snippet(text); err != nil {
		return fail(cmd.jsonOutput, err)
	}

	findings := cmd.app.Sessions.Analyze(text)

	if cmd.jsonOutput {
		if findings == nil {
			findings = []analysis.Finding{}
		}
		return writeJSON(c, findings)
	}

	out := c.Root().Writer
	printFindings(out, findings)
	return nil
}

func (cmd *AnalyzeCmd) runRules(ctx context.Context, c *cli.Command) error {
	rules := cmd.app.Sessions.Rules()

	if cmd.jsonOutput {
		return writeJSON(c, rules)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tSEVERITY\tMESSAGE")
	for _, r := range rules {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Category, r.Severity, r.Message)
	}
	return w.Flush()
}
