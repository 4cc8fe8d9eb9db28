package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/colonyops/refine/internal/commands"
	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/config"
	"github.com/colonyops/refine/internal/core/eventbus"
	"github.com/colonyops/refine/internal/core/logging"
	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/colonyops/refine/internal/data/db"
	"github.com/colonyops/refine/internal/data/stores"
	"github.com/colonyops/refine/internal/engine"
	"github.com/colonyops/refine/internal/providers"
	"github.com/colonyops/refine/pkg/executil"
	"github.com/colonyops/refine/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, build() falls back
	// to runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		refineApp = &engine.App{}
		database  *db.DB
		busCancel context.CancelFunc
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "refine",
		Usage:     "Iteratively improve C++ snippets with an AI collaborator",
		UsageText: "refine [global options] command [command options]",
		Description: `Refine keeps a versioned history of a C++ snippet while an AI collaborator
proposes improvements one round at a time.

Every round analyzes the current version, asks for a suggestion toward a goal,
validates the result and commits it as a new version. Rejected suggestions
never change the snippet, and any version can be restored with rollback.

Run 'refine start < file.cpp' to open a session.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("REFINE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/refine.log)",
				Sources:     cli.EnvVars("REFINE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("REFINE_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("REFINE_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "refine.log")
			}

			logger, closer, err := logutils.New(logutils.Options{Level: flags.LogLevel, File: logFile})
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logging.Install(logger)
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			dbOpts := db.OpenOptions{
				MaxOpenConns: cfg.Database.MaxOpenConns,
				MaxIdleConns: cfg.Database.MaxIdleConns,
				BusyTimeout:  cfg.Database.BusyTimeout,
			}
			database, err = stores.Open(cfg.DataDir, dbOpts, logging.Component("db"))
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			registry, err := cfg.Analysis.Registry()
			if err != nil {
				return ctx, fmt.Errorf("configure rules: %w", err)
			}

			// Helper replies are JSON, which can roughly double escaped code.
			helper := &executil.RealExecutor{MaxOutput: 4 * int64(cfg.Patch.MaxBytes), Grace: 2 * time.Second}
			collaborator, err := providers.New(cfg, helper, logging.Component("suggest"))
			if err != nil {
				return ctx, fmt.Errorf("setup collaborator: %w", err)
			}

			var limiter *rate.Limiter
			if rpm := cfg.Suggest.RequestsPerMinute; rpm > 0 {
				limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
			}

			bus := eventbus.New(64)
			eventbus.RegisterDebugLogger(bus, logging.Component("bus"))
			metrics := engine.NewMetrics(prometheus.DefaultRegisterer)
			metrics.Subscribe(bus)

			busCtx, cancel := context.WithCancel(context.Background())
			busCancel = cancel
			go bus.Start(busCtx)

			sessions := engine.NewSessionService(
				stores.NewSessionStore(database),
				analysis.New(registry, logging.Component("analysis")),
				suggest.NewBuilder(cfg.Suggest.Budget),
				collaborator,
				bus,
				engine.ControllerOptions{
					Validate: patch.ValidateOptions{
						MaxLines: cfg.Patch.MaxLines,
						MaxBytes: cfg.Patch.MaxBytes,
					},
					Timeout: cfg.Suggest.Timeout,
					Limiter: limiter,
				},
				logging.Component("engine"),
			)

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*refineApp = *engine.NewApp(sessions, metrics, bus, cfg, database)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if busCancel != nil {
				busCancel()
			}

			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewStartCmd(flags, refineApp).Register(app)
	app = commands.NewIterateCmd(flags, refineApp).Register(app)
	app = commands.NewRollbackCmd(flags, refineApp).Register(app)
	app = commands.NewShowCmd(flags, refineApp).Register(app)
	app = commands.NewDiffCmd(flags, refineApp).Register(app)
	app = commands.NewHistoryCmd(flags, refineApp).Register(app)
	app = commands.NewCloseCmd(flags, refineApp).Register(app)
	app = commands.NewLsCmd(flags, refineApp).Register(app)
	app = commands.NewAnalyzeCmd(flags, refineApp).Register(app)
	app = commands.NewBatchCmd(flags, refineApp).Register(app)
	app = commands.NewDBCmd(flags, refineApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
