package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/validate"
	"github.com/colonyops/refine/internal/engine"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type IterateCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	goal       string
	jsonOutput bool
}

// NewIterateCmd creates a new iterate command
func NewIterateCmd(flags *Flags, app *engine.App) *IterateCmd {
	return &IterateCmd{flags: flags, app: app}
}

// Register adds the iterate command to the application
func (cmd *IterateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "iterate",
		Usage:     "Run one improvement round",
		UsageText: "refine iterate <session> --goal <text> [--json]",
		Description: `Analyzes the current version, asks the configured collaborator for an
improved snippet and commits it as a child of the current version if it
passes validation.

A rejected round leaves the session unchanged and exits with status 1.
Press Ctrl-C while waiting for the suggestion to cancel the round.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "goal",
				Aliases:     []string{"g"},
				Usage:       "what the round should improve",
				Required:    true,
				Destination: &cmd.goal,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the round result as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		ShellComplete: SessionIDCompleter(cmd.app),
		Action:        cmd.run,
	})

	return app
}

func (cmd *IterateCmd) run(ctx context.Context, c *cli.Command) error {
	id, err := sessionArg(c)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}
	if err := validate.Goal(cmd.goal); err != nil {
		return fail(cmd.jsonOutput, err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()
		if ctx.Err() == nil && cmd.app.Sessions.CancelRound(id) {
			log.Info().Str("session_id", id).Msg("round cancelled by interrupt")
		}
	}()

	res, err := cmd.app.Sessions.Iterate(ctx, id, cmd.goal)
	stop()
	<-done
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		if err := writeJSON(c, res); err != nil {
			return err
		}
		if !res.Committed() {
			return cli.Exit("", 1)
		}
		return nil
	}

	out := c.Root().Writer
	if !res.Committed() {
		_, _ = fmt.Fprintf(out, "Round rejected (%s): %s\n", res.Reason, res.Detail)
		return cli.Exit("", 1)
	}

	v := res.Version
	_, _ = fmt.Fprintf(out, "Committed v%d (parent v%d) %s in %s\n", v.ID, v.ParentID, res.Stats, res.Duration.Round(time.Millisecond))
	if v.Rationale != "" {
		_, _ = fmt.Fprintf(out, "\n%s\n", v.Rationale)
	}
	_, _ = fmt.Fprintf(out, "\nFindings in v%d:\n", v.ID)
	printFindings(out, v.Findings)
	return nil
}

// roundErr returns nil for a committed round and the reason sentinel
// wrapped with the detail otherwise.
func roundErr(res session.RoundResult) error {
	if res.Committed() {
		return nil
	}
	return fmt.Errorf("%w: %s", res.Err(), res.Detail)
}
