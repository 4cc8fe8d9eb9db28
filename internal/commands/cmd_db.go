package commands

import (
	"context"
	"fmt"

	"github.com/colonyops/refine/internal/data/db"
	"github.com/colonyops/refine/internal/engine"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

type DBCmd struct {
	flags *Flags
	app   *engine.App

	// flags
	jsonOutput bool
	steps      int
}

// NewDBCmd creates a new db command
func NewDBCmd(flags *Flags, app *engine.App) *DBCmd {
	return &DBCmd{flags: flags, app: app}
}

// Register adds the db command to the application
func (cmd *DBCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "db",
		Usage: "Database maintenance commands",
		Commands: []*cli.Command{
			{
				Name:        "version",
				Usage:       "Show the schema version",
				UsageText:   "refine db version [--json]",
				Description: "Prints the highest applied schema migration.",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.runVersion,
			},
			{
				Name:      "revert",
				Usage:     "Revert schema migrations",
				UsageText: "refine db revert [--steps n]",
				Description: `Reverts the newest applied schema migrations, for example before
downgrading refine. Reverting drops the tables those migrations created.
The next command run by a newer refine applies them again.`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "steps",
						Usage:       "number of migrations to revert",
						Value:       1,
						Destination: &cmd.steps,
					},
				},
				Action: cmd.runRevert,
			},
		},
	})

	return app
}

func (cmd *DBCmd) runVersion(ctx context.Context, c *cli.Command) error {
	v, err := cmd.app.DB.SchemaVersion(ctx)
	if err != nil {
		return fail(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return writeJSON(c, map[string]int{"schema_version": v})
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Schema version %d\n", v)
	return nil
}

func (cmd *DBCmd) runRevert(ctx context.Context, c *cli.Command) error {
	if err := db.MigrateDown(ctx, cmd.app.DB.Conn(), cmd.steps); err != nil {
		return fmt.Errorf("revert migrations: %w", err)
	}

	v, err := cmd.app.DB.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("steps", cmd.steps).Int("schema_version", v).Msg("migrations reverted")
	_, _ = fmt.Fprintf(c.Root().Writer, "Reverted %d migration(s); schema version %d\n", cmd.steps, v)
	return nil
}
