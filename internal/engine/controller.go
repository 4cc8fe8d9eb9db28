// Package engine runs improvement rounds over sessions: it ties analysis,
// request building, the collaborator, patch validation and the version tree
// into one serialized state machine per session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/eventbus"
	"github.com/colonyops/refine/internal/core/logging"
	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/colonyops/refine/internal/core/version"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ControllerOptions tunes a round.
type ControllerOptions struct {
	// Validate bounds accepted candidates.
	Validate patch.ValidateOptions
	// Timeout caps a single collaborator call. Zero means no limit beyond
	// the caller's context.
	Timeout time.Duration
	// Limiter throttles collaborator calls. It may be shared between
	// sessions and is waited on inside awaiting_suggestion, so the wait is
	// cancellable like the call itself.
	Limiter *rate.Limiter
	// Now overrides the clock for version timestamps.
	Now func() time.Time
}

func (o ControllerOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Controller owns one session's version tree and round state. At most one
// round runs at a time; a second Iterate fails immediately instead of
// queueing.
type Controller struct {
	sessionID    string
	tree         *version.Tree
	store        session.Store
	analyzer     *analysis.Analyzer
	builder      *suggest.Builder
	collaborator suggest.Collaborator
	bus          *eventbus.EventBus
	opts         ControllerOptions
	log          zerolog.Logger

	mu     sync.Mutex
	state  session.RoundState
	cancel context.CancelCauseFunc
	closed bool
}

// NewController creates a controller over an existing tree. store receives
// every committed version and pointer move before it becomes visible.
func NewController(
	sessionID string,
	tree *version.Tree,
	store session.Store,
	analyzer *analysis.Analyzer,
	builder *suggest.Builder,
	collaborator suggest.Collaborator,
	bus *eventbus.EventBus,
	opts ControllerOptions,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		sessionID:    sessionID,
		tree:         tree,
		store:        store,
		analyzer:     analyzer,
		builder:      builder,
		collaborator: collaborator,
		bus:          bus,
		opts:         opts,
		log:          log.With().Str("session_id", sessionID).Logger(),
		state:        session.RoundIdle,
	}
}

// State returns the current round state.
func (c *Controller) State() session.RoundState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tree exposes the version tree for reads.
func (c *Controller) Tree() *version.Tree {
	return c.tree
}

// Iterate runs one round toward goal. It returns ErrRoundInProgress when a
// round is already running and ErrClosed after Close. Every other outcome,
// including rejection, is reported through the RoundResult with a nil error.
func (c *Controller) Iterate(ctx context.Context, goal string) (session.RoundResult, error) {
	roundID, err := c.begin()
	if err != nil {
		return session.RoundResult{}, err
	}
	defer c.setState(session.RoundIdle)

	base := c.tree.Current()
	ctx = logging.WithRound(ctx, logging.Round{SessionID: c.sessionID, RoundID: roundID, BaseVersion: base.ID})
	log := c.log.With().Str("round_id", roundID).Logger()
	start := time.Now()

	res := session.RoundResult{
		RoundID:     roundID,
		SessionID:   c.sessionID,
		BaseVersion: base.ID,
	}

	c.bus.PublishRoundStarted(eventbus.RoundStartedPayload{
		SessionID:   c.sessionID,
		RoundID:     roundID,
		BaseVersion: base.ID,
		Goal:        goal,
	})
	log.Debug().Int("base_version", base.ID).Str("goal", goal).Msg("round started")

	res.Findings = c.analyzer.Analyze(base.Text)
	request := c.builder.Build(base.Text, res.Findings, goal)
	if request.Empty() {
		detail := fmt.Sprintf("%s: no declaration fits the request budget of %d bytes", suggest.FailureBudget, request.Budget)
		return c.reject(log, res, start, session.ReasonSuggestionUnavailable, detail), nil
	}

	suggestion, err := c.await(ctx, request)
	if err != nil {
		if errors.Is(err, session.ErrCancelled) {
			return c.reject(log, res, start, session.ReasonCancelled, "cancelled while awaiting suggestion"), nil
		}
		detail := fmt.Sprintf("%s: %v", suggest.Classify(err), err)
		return c.reject(log, res, start, session.ReasonSuggestionUnavailable, detail), nil
	}
	res.Rationale = suggestion.Rationale

	c.setState(session.RoundDiffing)
	candidate, err := request.Assemble(suggestion.Text)
	if err != nil {
		detail := fmt.Sprintf("%s: %v", suggest.Classify(err), err)
		return c.reject(log, res, start, session.ReasonSuggestionUnavailable, detail), nil
	}
	// Diffing is quadratic in line count; bound the untrusted text first.
	if err := patch.CheckSize(candidate, c.opts.Validate); err != nil {
		return c.reject(log, res, start, session.ReasonInvalidPatch, err.Error()), nil
	}
	hunks := patch.Diff(base.Text, candidate)

	c.setState(session.RoundValidating)
	if err := patch.Validate(candidate, base.Text, c.opts.Validate); err != nil {
		return c.reject(log, res, start, session.ReasonInvalidPatch, err.Error()), nil
	}

	// Past the suspension point the round completes regardless of the
	// caller's context.
	persistCtx := context.WithoutCancel(ctx)
	v, err := c.tree.Commit(version.CommitParams{
		Text:      candidate,
		Findings:  c.analyzer.Analyze(candidate),
		Diff:      hunks,
		Author:    version.AuthorAI,
		Rationale: suggestion.Rationale,
		Goal:      goal,
		CreatedAt: c.opts.now(),
	}, func(v version.Version) error {
		if err := c.store.AppendVersion(persistCtx, c.sessionID, v); err != nil {
			return fmt.Errorf("%w: %w", session.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrStorage) {
			return c.reject(log, res, start, session.ReasonStorageFailed, err.Error()), nil
		}
		panic(fmt.Sprintf("session %s: commit invariant violated: %v", c.sessionID, err))
	}

	c.setState(session.RoundCommitted)
	res.Status = session.StatusCommitted
	res.Version = &v
	res.Stats = patch.Stats(hunks)
	res.Duration = time.Since(start)

	c.bus.PublishRoundCommitted(eventbus.RoundCommittedPayload{Result: res})
	log.Info().
		Int("version", v.ID).
		Int("parent", v.ParentID).
		Str("stats", res.Stats.String()).
		Dur("duration", res.Duration).
		Msg("round committed")

	return res, nil
}

// Cancel aborts the running round if it is awaiting a suggestion. It
// reports whether a round was cancelled; later states are not interrupted.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != session.RoundAwaitingSuggestion || c.cancel == nil {
		return false
	}
	c.cancel(session.ErrCancelled)
	return true
}

// Rollback moves the current pointer to an existing version. It is only
// allowed while idle.
func (c *Controller) Rollback(ctx context.Context, id int) (version.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return version.Version{}, session.ErrClosed
	}
	if c.state != session.RoundIdle {
		return version.Version{}, session.ErrRoundInProgress
	}

	from := c.tree.Current().ID
	v, err := c.tree.Rollback(id, func(v version.Version) error {
		if err := c.store.SetCurrent(ctx, c.sessionID, v.ID); err != nil {
			return fmt.Errorf("%w: %w", session.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return version.Version{}, err
	}

	c.bus.PublishSessionRolledBack(eventbus.SessionRolledBackPayload{
		SessionID: c.sessionID,
		From:      from,
		To:        v.ID,
	})
	c.log.Info().Int("from", from).Int("to", v.ID).Msg("rolled back")

	return v, nil
}

// Close stops the controller from accepting rounds and rollbacks. Reads of
// the tree keep working. It fails while a round is running.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return session.ErrClosed
	}
	if c.state != session.RoundIdle {
		return session.ErrRoundInProgress
	}
	c.closed = true
	return nil
}

// Closed reports whether Close has taken effect.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// reopen undoes Close when the closed state could not be persisted.
func (c *Controller) reopen() {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
}

// begin performs the idle check and the first transition atomically.
func (c *Controller) begin() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", session.ErrClosed
	}
	if c.state != session.RoundIdle {
		return "", session.ErrRoundInProgress
	}

	c.state = session.RoundAnalyzing
	return uuid.NewString(), nil
}

func (c *Controller) setState(s session.RoundState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// await is the round's only suspension point. It returns ErrCancelled when
// the round was cancelled through Cancel or the caller's context.
func (c *Controller) await(ctx context.Context, request suggest.Context) (suggest.Suggestion, error) {
	roundCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c.mu.Lock()
	c.state = session.RoundAwaitingSuggestion
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	suggestion, err := c.call(roundCtx, request)

	if cause := context.Cause(roundCtx); cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
		return suggest.Suggestion{}, session.ErrCancelled
	}
	return suggestion, err
}

func (c *Controller) call(ctx context.Context, request suggest.Context) (suggest.Suggestion, error) {
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return suggest.Suggestion{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	suggestion, err := c.collaborator.Suggest(ctx, request)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return suggest.Suggestion{}, err
	}
	return suggestion, nil
}

func (c *Controller) reject(log zerolog.Logger, res session.RoundResult, start time.Time, reason session.Reason, detail string) session.RoundResult {
	c.setState(session.RoundRejected)

	res.Status = session.StatusRejected
	res.Reason = reason
	res.Detail = detail
	res.Duration = time.Since(start)

	c.bus.PublishRoundRejected(eventbus.RoundRejectedPayload{Result: res})
	log.Info().
		Str("reason", string(reason)).
		Str("detail", detail).
		Dur("duration", res.Duration).
		Msg("round rejected")

	return res
}
