package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/eventbus"
	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/suggest"
	"github.com/colonyops/refine/internal/core/version"
	"github.com/colonyops/refine/pkg/kv"
	"github.com/colonyops/refine/pkg/randid"
	"github.com/rs/zerolog"
)

// StartOptions configures session creation.
type StartOptions struct {
	Text string // initial snippet, stored verbatim as the root version
	Name string // display name, defaults to the session id
	ID   string // session id, generated when empty
}

// SessionService is the entry point for session operations. Sessions are
// independent; each one is driven by its own Controller, created on first
// use and rebuilt from the store when not in memory.
type SessionService struct {
	store        session.Store
	analyzer     *analysis.Analyzer
	builder      *suggest.Builder
	collaborator suggest.Collaborator
	bus          *eventbus.EventBus
	opts         ControllerOptions
	log          zerolog.Logger

	live *kv.Store[string, *Controller]
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	store session.Store,
	analyzer *analysis.Analyzer,
	builder *suggest.Builder,
	collaborator suggest.Collaborator,
	bus *eventbus.EventBus,
	opts ControllerOptions,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		store:        store,
		analyzer:     analyzer,
		builder:      builder,
		collaborator: collaborator,
		bus:          bus,
		opts:         opts,
		log:          log,
		live:         kv.New[string, *Controller](),
	}
}

// StartSession creates a session whose root version is text and returns
// its id.
func (s *SessionService) StartSession(ctx context.Context, text string) (string, error) {
	sess, err := s.Start(ctx, StartOptions{Text: text})
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Start creates a session from opts.
func (s *SessionService) Start(ctx context.Context, opts StartOptions) (session.Session, error) {
	id := opts.ID
	if id == "" {
		id = randid.Generate(8)
	}
	name := opts.Name
	if name == "" {
		name = id
	}

	now := s.opts.now()
	tree := version.NewTree(opts.Text, s.analyzer.Analyze(opts.Text), now)

	sess := session.Session{
		ID:             id,
		Name:           name,
		Slug:           session.Slugify(name),
		Language:       session.LanguageCPP,
		State:          session.StateActive,
		CurrentVersion: tree.Current().ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, sess, tree.Current()); err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.live.Set(id, s.newController(id, tree))
	s.bus.PublishSessionStarted(eventbus.SessionStartedPayload{Session: &sess})
	s.log.Info().Str("session_id", id).Str("name", name).Msg("session started")

	return sess, nil
}

// Iterate runs one improvement round on the session.
func (s *SessionService) Iterate(ctx context.Context, id, goal string) (session.RoundResult, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return session.RoundResult{}, err
	}
	return c.Iterate(ctx, goal)
}

// Rollback moves the session's current version to versionID.
func (s *SessionService) Rollback(ctx context.Context, id string, versionID int) error {
	c, err := s.controller(ctx, id)
	if err != nil {
		return err
	}
	_, err = c.Rollback(ctx, versionID)
	return err
}

// GetVersion returns one version of the session.
func (s *SessionService) GetVersion(ctx context.Context, id string, versionID int) (version.Version, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return version.Version{}, err
	}
	return c.tree.Get(versionID)
}

// Current returns the session's current version.
func (s *SessionService) Current(ctx context.Context, id string) (version.Version, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return version.Version{}, err
	}
	return c.tree.Current(), nil
}

// GetDiff returns the hunks that turn the version's parent into it. For the
// root this is the diff from the empty text.
func (s *SessionService) GetDiff(ctx context.Context, id string, versionID int) ([]patch.Hunk, error) {
	v, err := s.GetVersion(ctx, id, versionID)
	if err != nil {
		return nil, err
	}
	return v.Diff, nil
}

// DiffBetween diffs two versions of the same session.
func (s *SessionService) DiffBetween(ctx context.Context, id string, from, to int) ([]patch.Hunk, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.tree.DiffTo(from, to)
}

// Ancestors returns the chain from the root to versionID.
func (s *SessionService) Ancestors(ctx context.Context, id string, versionID int) ([]version.Version, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.tree.Ancestors(versionID)
}

// ExportHistory lists every version of the session ordered by id,
// including branches abandoned by rollback.
func (s *SessionService) ExportHistory(ctx context.Context, id string) ([]session.HistoryEntry, error) {
	c, err := s.controller(ctx, id)
	if err != nil {
		return nil, err
	}

	current := c.tree.Current().ID
	versions := c.tree.History()
	entries := make([]session.HistoryEntry, len(versions))
	for i, v := range versions {
		entries[i] = session.NewHistoryEntry(v, current)
	}
	return entries, nil
}

// CancelRound cancels the session's round if it is awaiting a suggestion.
// Sessions not loaded in this process have no round to cancel.
func (s *SessionService) CancelRound(id string) bool {
	c, ok := s.live.Get(id)
	if !ok {
		return false
	}
	return c.Cancel()
}

// CloseSession tears a session down. Its history stays readable but no
// further rounds or rollbacks are accepted.
func (s *SessionService) CloseSession(ctx context.Context, id string) error {
	c, err := s.controller(ctx, id)
	if err != nil {
		return err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	if err := c.Close(); err != nil {
		return err
	}

	sess.MarkClosed(s.opts.now())
	if err := s.store.SetState(ctx, sess); err != nil {
		c.reopen()
		return fmt.Errorf("close session %s: %w", id, err)
	}

	s.bus.PublishSessionClosed(eventbus.SessionClosedPayload{SessionID: id})
	s.log.Info().Str("session_id", id).Msg("session closed")
	return nil
}

// Get returns the stored session record.
func (s *SessionService) Get(ctx context.Context, id string) (session.Session, error) {
	return s.store.Get(ctx, id)
}

// ListSessions returns all sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context) ([]session.Session, error) {
	return s.store.List(ctx)
}

// Analyze runs the analyzer without touching any session.
func (s *SessionService) Analyze(text string) []analysis.Finding {
	return s.analyzer.Analyze(text)
}

// Rules returns the effective rule definitions.
func (s *SessionService) Rules() []analysis.Definition {
	return s.analyzer.Rules()
}

// controller returns the live controller for id, replaying it from the
// store when needed. Closed sessions replay into a closed controller so
// their history can still be read.
func (s *SessionService) controller(ctx context.Context, id string) (*Controller, error) {
	return s.live.GetOrLoad(id, func() (*Controller, error) {
		sess, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}

		records, err := s.store.Versions(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load versions of %s: %w", id, err)
		}

		start := time.Now()
		tree, err := version.Replay(records, sess.CurrentVersion)
		if err != nil {
			return nil, fmt.Errorf("replay session %s: %w", id, err)
		}
		s.log.Debug().
			Str("session_id", id).
			Int("versions", tree.Len()).
			Dur("took", time.Since(start)).
			Msg("session replayed")

		c := s.newController(id, tree)
		if sess.IsClosed() {
			c.closed = true
		}
		return c, nil
	})
}

func (s *SessionService) newController(id string, tree *version.Tree) *Controller {
	return NewController(id, tree, s.store, s.analyzer, s.builder, s.collaborator, s.bus, s.opts, s.log)
}

// IsNotFound reports whether err means a session or version does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, session.ErrNotFound) || errors.Is(err, version.ErrNotFound)
}
