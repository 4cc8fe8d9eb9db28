package stores

import (
	"context"
	"testing"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/version"
	"github.com/colonyops/refine/internal/data/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SessionStore {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err, "Open")
	t.Cleanup(func() { _ = database.Close() })
	return NewSessionStore(database)
}

func newSession(id string, created time.Time) (session.Session, *version.Tree) {
	sess := session.Session{
		ID:             id,
		Name:           "Game Physics",
		Slug:           "game-physics",
		Language:       session.LanguageCPP,
		State:          session.StateActive,
		CurrentVersion: 1,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	findings := []analysis.Finding{{
		RuleID: "magic-number", Category: analysis.CategoryStyle, Severity: analysis.SeverityInfo,
		LineStart: 1, LineEnd: 1, Message: "name 9.81",
	}}
	return sess, version.NewTree("float g = 9.81f;\n", findings, created)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		store := openStore(t)
		sess, tree := newSession("abc123", created)

		require.NoError(t, store.Create(ctx, sess, tree.Current()))

		got, err := store.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, sess.Slug, got.Slug)
		assert.Equal(t, session.StateActive, got.State)
		assert.Equal(t, 1, got.CurrentVersion)
		assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("get not found", func(t *testing.T) {
		store := openStore(t)

		_, err := store.Get(ctx, "nonexistent")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		store := openStore(t)
		sess, tree := newSession("dup", created)

		require.NoError(t, store.Create(ctx, sess, tree.Current()))
		require.Error(t, store.Create(ctx, sess, tree.Current()))
	})

	t.Run("list newest first", func(t *testing.T) {
		store := openStore(t)

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, sessions)

		older, olderTree := newSession("older", created)
		newer, newerTree := newSession("newer", created.Add(time.Hour))
		require.NoError(t, store.Create(ctx, older, olderTree.Current()))
		require.NoError(t, store.Create(ctx, newer, newerTree.Current()))

		sessions, err = store.List(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, "newer", sessions[0].ID)
		assert.Equal(t, "older", sessions[1].ID)
	})

	t.Run("versions replay into the same tree", func(t *testing.T) {
		store := openStore(t)
		sess, tree := newSession("replay", created)
		require.NoError(t, store.Create(ctx, sess, tree.Current()))

		persist := func(v version.Version) error { return store.AppendVersion(ctx, sess.ID, v) }

		next := "constexpr float kGravity = 9.81f;\n"
		_, err := tree.Commit(version.CommitParams{
			Text:      next,
			Diff:      patch.Diff(tree.Current().Text, next),
			Author:    version.AuthorAI,
			Rationale: "named the constant",
			Goal:      "name constants",
			CreatedAt: created.Add(time.Minute),
		}, persist)
		require.NoError(t, err)

		_, err = tree.Rollback(1, func(v version.Version) error { return store.SetCurrent(ctx, sess.ID, v.ID) })
		require.NoError(t, err)

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.CurrentVersion)

		versions, err := store.Versions(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, "named the constant", versions[1].Rationale)
		assert.Equal(t, version.AuthorAI, versions[1].Author)

		rebuilt, err := version.Replay(versions, got.CurrentVersion)
		require.NoError(t, err)
		assert.Equal(t, 1, rebuilt.Current().ID)
		assert.Equal(t, tree.Len(), rebuilt.Len())

		want := tree.History()
		have := rebuilt.History()
		for i := range want {
			assert.Equal(t, want[i].Text, have[i].Text)
			assert.Equal(t, want[i].Findings, have[i].Findings)
			assert.Equal(t, want[i].Diff, have[i].Diff)
			assert.True(t, want[i].CreatedAt.Equal(have[i].CreatedAt))
		}
	})

	t.Run("append to missing session rolls back", func(t *testing.T) {
		store := openStore(t)
		_, tree := newSession("ghost", created)

		err := store.AppendVersion(ctx, "ghost", tree.Current())
		require.Error(t, err)

		versions, err := store.Versions(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("set state", func(t *testing.T) {
		store := openStore(t)
		sess, tree := newSession("closing", created)
		require.NoError(t, store.Create(ctx, sess, tree.Current()))

		closedAt := created.Add(time.Hour)
		sess.MarkClosed(closedAt)
		require.NoError(t, store.SetState(ctx, sess))

		got, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, got.IsClosed())
		assert.True(t, closedAt.Equal(got.UpdatedAt))

		versions, err := store.Versions(ctx, sess.ID)
		require.NoError(t, err)
		assert.Len(t, versions, 1, "closing keeps history")

		missing := session.Session{ID: "missing", State: session.StateClosed, UpdatedAt: closedAt}
		assert.ErrorIs(t, store.SetState(ctx, missing), session.ErrNotFound)
		assert.ErrorIs(t, store.SetCurrent(ctx, "missing", 1), session.ErrNotFound)
	})
}
