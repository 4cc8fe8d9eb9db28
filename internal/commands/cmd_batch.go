package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/validate"
	"github.com/colonyops/refine/internal/engine"
	"github.com/colonyops/refine/pkg/iojson"
	"github.com/colonyops/refine/pkg/logutils"
	"github.com/colonyops/refine/pkg/profiler"
	"github.com/colonyops/refine/pkg/randid"
	"github.com/colonyops/refine/pkg/utils"
	"github.com/hay-kot/criterio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

type BatchCmd struct {
	flags *Flags
	app   *engine.App
	fr    *iojson.FileReader[BatchInput]

	// flags
	goal        string
	rounds      int
	parallel    int
	profilePort int
}

func NewBatchCmd(flags *Flags, app *engine.App) *BatchCmd {
	return &BatchCmd{
		flags: flags,
		app:   app,
		fr:    &iojson.FileReader[BatchInput]{},
	}
}

func (cmd *BatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "batch",
		Usage: "Start sessions for many snippets and improve them in parallel",
		UsageText: `refine batch --goal <text> [options] <files...>

Read a JSON job from stdin:
  echo '{"files":[{"path":"physics.cpp","goal":"remove allocations"}]}' | refine batch

Read it from a file:
  refine batch -f batch.json`,
		Description: `Starts one session per snippet and runs up to --rounds improvement rounds
on each, stopping a session at its first rejected round. Sessions run
concurrently, at most --parallel at a time.

Processing stops after 3 failed sessions. Files not attempted are marked as skipped.

Input JSON schema:
  {
    "files": [
      {
        "path": "src/physics.cpp",
        "name": "optional display name",
        "session_id": "optional-id",
        "goal": "optional, defaults to --goal"
      }
    ]
  }

Output is JSON with a batch ID, log file path, and results for each file.
Use --profile-port to serve pprof and the round metrics while the batch runs.`,
		Flags: []cli.Flag{
			cmd.fr.Flag(),
			&cli.StringFlag{
				Name:        "goal",
				Aliases:     []string{"g"},
				Usage:       "goal for every file without its own",
				Destination: &cmd.goal,
			},
			&cli.IntFlag{
				Name:        "rounds",
				Usage:       "rounds per session",
				Value:       1,
				Destination: &cmd.rounds,
			},
			&cli.IntFlag{
				Name:        "parallel",
				Aliases:     []string{"p"},
				Usage:       "sessions processed concurrently",
				Value:       4,
				Destination: &cmd.parallel,
			},
			&cli.IntFlag{
				Name:        "profile-port",
				Usage:       "serve pprof and /metrics on 127.0.0.1:<port> (0 disables)",
				Sources:     cli.EnvVars("REFINE_PROFILE_PORT"),
				Destination: &cmd.profilePort,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *BatchCmd) run(ctx context.Context, c *cli.Command) error {
	batchID := randid.Generate(6)
	logFile := filepath.Join(cmd.flags.DataDir, "logs", "batch-"+batchID+".log")

	logger, closer, err := logutils.New(logutils.Options{Level: cmd.flags.LogLevel, File: logFile, Truncate: true})
	if err != nil {
		return iojson.WriteError(iojson.Error{Message: fmt.Sprintf("setup logger: %s", err)})
	}
	defer closer()

	logger.Info().Str("batch_id", batchID).Msg("starting batch processing")

	input, err := cmd.input(c)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read input")
		return iojson.WriteError(iojson.Error{Message: fmt.Sprintf("read input: %s", err)})
	}

	input.applyDefaults(cmd.goal)
	if err := input.Validate(); err != nil {
		logger.Error().Err(err).Msg("input validation failed")
		return iojson.WriteError(iojson.Error{Message: fmt.Sprintf("invalid input: %s", err)})
	}

	if cmd.profilePort > 0 {
		srv := profiler.New(cmd.profilePort, prometheus.DefaultGatherer)
		if err := srv.Start(ctx); err != nil {
			return iojson.WriteError(iojson.Error{Message: fmt.Sprintf("start profiler: %s", err)})
		}
		defer func() { _ = srv.Shutdown(context.WithoutCancel(ctx)) }()
		logger.Info().Str("addr", srv.Addr()).Msg("profiler listening")
	}

	output := BatchOutput{
		BatchID: batchID,
		LogFile: logFile,
		Results: cmd.process(ctx, logger, input),
	}

	logger.Info().
		Int("total", len(input.Files)).
		Int("committed", countByStatus(output.Results, StatusCommitted)).
		Int("rejected", countByStatus(output.Results, StatusRejected)).
		Int("failed", countByStatus(output.Results, StatusFailed)).
		Int("skipped", countByStatus(output.Results, StatusSkipped)).
		Msg("batch processing complete")

	return writeJSON(c, output)
}

func (cmd *BatchCmd) input(c *cli.Command) (BatchInput, error) {
	if c.Args().Present() {
		var in BatchInput
		for _, path := range c.Args().Slice() {
			in.Files = append(in.Files, BatchFile{Path: path})
		}
		return in, nil
	}
	return cmd.fr.Read()
}

// process runs every file with bounded concurrency. Results keep the input
// order; per-file progress reaches stderr in that order as files finish.
func (cmd *BatchCmd) process(ctx context.Context, logger zerolog.Logger, input BatchInput) []BatchResult {
	results := make([]BatchResult, len(input.Files))
	progress := utils.NewOrderedWriter(os.Stderr, len(input.Files))
	var failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cmd.parallel, 1))

	for i, f := range input.Files {
		g.Go(func() error {
			defer progress.Done(i)

			if failures.Load() >= maxFailures || gctx.Err() != nil {
				logger.Warn().Str("path", f.Path).Msg("skipping file due to failure threshold")
				results[i] = BatchResult{Path: f.Path, Status: StatusSkipped}
				return nil
			}

			flog := logger.With().Str("path", f.Path).Int("index", i).Logger()
			results[i] = cmd.processFile(ctx, flog, progress.Slot(i), f)
			if results[i].Status == StatusFailed {
				failures.Add(1)
				flog.Error().Str("error", results[i].Error).Msg("file failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := progress.Err(); err != nil {
		logger.Warn().Err(err).Msg("failed to write progress")
	}
	return results
}

func (cmd *BatchCmd) processFile(ctx context.Context, log zerolog.Logger, w io.Writer, f BatchFile) BatchResult {
	result := BatchResult{Path: f.Path, Status: StatusFailed}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		result.Error = fmt.Errorf("read snippet: %w", err).Error()
		return result
	}
	text := string(data)
	if err := validate.Snippet(text); err != nil {
		result.Error = err.Error()
		return result
	}

	name := f.Name
	if name == "" {
		name = session.NameFromPath(f.Path)
	}

	sess, err := cmd.app.Sessions.Start(ctx, engine.StartOptions{Text: text, Name: name, ID: f.SessionID})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.SessionID = sess.ID
	result.Version = sess.CurrentVersion
	log.Info().Str("session_id", sess.ID).Msg("session started")
	_, _ = fmt.Fprintf(w, "%s: session %s\n", f.Path, sess.ID)

	for round := 1; round <= max(cmd.rounds, 1); round++ {
		res, err := cmd.app.Sessions.Iterate(ctx, sess.ID, f.Goal)
		if err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
			return result
		}
		result.Rounds++

		if err := roundErr(res); err != nil {
			log.Info().Int("round", round).Str("reason", string(res.Reason)).Msg("round rejected")
			_, _ = fmt.Fprintf(w, "  round %d rejected: %s\n", round, err)
			if result.Status != StatusCommitted {
				result.Status = StatusRejected
				result.Reason = string(res.Reason)
			}
			return result
		}

		result.Status = StatusCommitted
		result.Version = res.Version.ID
		log.Info().Int("round", round).Int("version", res.Version.ID).Msg("round committed")
		_, _ = fmt.Fprintf(w, "  round %d committed v%d %s\n", round, res.Version.ID, res.Stats)
	}

	return result
}

const (
	StatusCommitted = "committed" // StatusCommitted indicates at least one round produced a new version.
	StatusRejected  = "rejected"  // StatusRejected indicates the first round was rejected.
	StatusFailed    = "failed"    // StatusFailed indicates the session could not be started or driven.
	StatusSkipped   = "skipped"   // StatusSkipped indicates the file was not attempted due to failure threshold.
	maxFailures     = 3           // maxFailures is the number of failures before stopping batch processing.
)

// BatchInput is the JSON input schema for batch processing.
type BatchInput struct {
	Files []BatchFile `json:"files"`
}

// BatchFile defines a single snippet to improve.
type BatchFile struct {
	Path      string `json:"path"`
	Name      string `json:"name,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Goal      string `json:"goal,omitempty"`
}

func (b *BatchInput) applyDefaults(goal string) {
	for i := range b.Files {
		if b.Files[i].Goal == "" {
			b.Files[i].Goal = goal
		}
	}
}

// Validate checks the batch input for errors using criterio.
func (b BatchInput) Validate() error {
	if len(b.Files) == 0 {
		return criterio.NewFieldErrors("files", fmt.Errorf("array is empty"))
	}

	var errs criterio.FieldErrorsBuilder
	var (
		seenPaths = make(map[string]bool)
		seenIDs   = make(map[string]bool)
	)

	for i, f := range b.Files {
		field := fmt.Sprintf("files[%d]", i)

		if f.Path == "" {
			errs = errs.Append(field+".path", fmt.Errorf("path is required"))
			continue
		}
		if seenPaths[f.Path] {
			errs = errs.Append(field+".path", fmt.Errorf("duplicate path %q", f.Path))
			continue
		}
		seenPaths[f.Path] = true

		if err := validate.Goal(f.Goal); err != nil {
			errs = errs.Append(field+".goal", err)
		}

		if f.SessionID != "" {
			if err := validate.SessionID(f.SessionID); err != nil {
				errs = errs.Append(field+".session_id", err)
				continue
			}
			if seenIDs[f.SessionID] {
				errs = errs.Append(field+".session_id", fmt.Errorf("duplicate session_id %q", f.SessionID))
				continue
			}
			seenIDs[f.SessionID] = true
		}
	}

	return errs.ToError()
}

// BatchResult is the output for a single file.
type BatchResult struct {
	Path      string `json:"path"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
	Rounds    int    `json:"rounds"`
	Version   int    `json:"version,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchOutput is the JSON output schema.
type BatchOutput struct {
	BatchID string        `json:"batch_id"`
	LogFile string        `json:"log_file"`
	Results []BatchResult `json:"results"`
}

func countByStatus(results []BatchResult, status string) int {
	count := 0
	for _, r := range results {
		if r.Status == status {
			count++
		}
	}
	return count
}
