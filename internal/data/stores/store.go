package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/core/session"
	"github.com/colonyops/refine/internal/core/version"
	"github.com/colonyops/refine/internal/data/db"
)

// SessionStore implements session.Store using SQLite.
type SessionStore struct {
	db  *db.DB
	now func() time.Time
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore creates a new SQLite-backed session store.
func NewSessionStore(db *db.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Create stores a new session and its root version in one transaction.
func (s *SessionStore) Create(ctx context.Context, sess session.Session, root version.Version) error {
	params, err := versionParams(sess.ID, root)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(q *db.Queries) error {
		err := q.InsertSession(ctx, db.InsertSessionParams{
			ID:             sess.ID,
			Name:           sess.Name,
			Slug:           sess.Slug,
			Language:       sess.Language,
			State:          string(sess.State),
			CurrentVersion: int64(root.ID),
			CreatedAt:      sess.CreatedAt.UnixNano(),
			UpdatedAt:      sess.UpdatedAt.UnixNano(),
		})
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if err := q.InsertVersion(ctx, params); err != nil {
			return fmt.Errorf("failed to insert root version: %w", err)
		}
		return nil
	})
}

// Get returns a session by ID. Returns session.ErrNotFound if not found.
func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	row, err := s.db.Queries().GetSession(ctx, id)
	if IsNotFoundError(err) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	return rowToSession(row), nil
}

// List returns all sessions, newest first.
func (s *SessionStore) List(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.Queries().ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, rowToSession(row))
	}

	return sessions, nil
}

// AppendVersion stores v and advances the session's current version to it
// in one transaction.
func (s *SessionStore) AppendVersion(ctx context.Context, sessionID string, v version.Version) error {
	params, err := versionParams(sessionID, v)
	if err != nil {
		return err
	}

	return retryBusy(ctx, func() error {
		return s.db.WithTx(ctx, func(q *db.Queries) error {
			return s.appendVersion(ctx, q, sessionID, v, params)
		})
	})
}

func (s *SessionStore) appendVersion(ctx context.Context, q *db.Queries, sessionID string, v version.Version, params db.InsertVersionParams) error {
	if err := q.InsertVersion(ctx, params); err != nil {
		return fmt.Errorf("failed to insert version %d: %w", v.ID, err)
	}

	n, err := q.UpdateSessionCurrent(ctx, db.UpdateSessionCurrentParams{
		ID:             sessionID,
		CurrentVersion: int64(v.ID),
		UpdatedAt:      s.now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to update current version: %w", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// SetCurrent moves the session's current version pointer.
func (s *SessionStore) SetCurrent(ctx context.Context, sessionID string, versionID int) error {
	var n int64
	err := retryBusy(ctx, func() error {
		var err error
		n, err = s.db.Queries().UpdateSessionCurrent(ctx, db.UpdateSessionCurrentParams{
			ID:             sessionID,
			CurrentVersion: int64(versionID),
			UpdatedAt:      s.now().UnixNano(),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set current version: %w", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Versions returns every version of the session in id order.
func (s *SessionStore) Versions(ctx context.Context, sessionID string) ([]version.Version, error) {
	rows, err := s.db.Queries().ListVersions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]version.Version, 0, len(rows))
	for _, row := range rows {
		v, err := rowToVersion(row)
		if err != nil {
			return nil, fmt.Errorf("failed to convert version %d: %w", row.ID, err)
		}
		versions = append(versions, v)
	}

	return versions, nil
}

// SetState persists sess.State and sess.UpdatedAt.
func (s *SessionStore) SetState(ctx context.Context, sess session.Session) error {
	n, err := s.db.Queries().UpdateSessionState(ctx, db.UpdateSessionStateParams{
		ID:        sess.ID,
		State:     string(sess.State),
		UpdatedAt: sess.UpdatedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to set session state: %w", err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func versionParams(sessionID string, v version.Version) (db.InsertVersionParams, error) {
	findings := v.Findings
	if findings == nil {
		findings = []analysis.Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return db.InsertVersionParams{}, fmt.Errorf("failed to marshal findings: %w", err)
	}

	hunks := v.Diff
	if hunks == nil {
		hunks = []patch.Hunk{}
	}
	diffJSON, err := json.Marshal(hunks)
	if err != nil {
		return db.InsertVersionParams{}, fmt.Errorf("failed to marshal diff: %w", err)
	}

	return db.InsertVersionParams{
		SessionID: sessionID,
		ID:        int64(v.ID),
		ParentID:  int64(v.ParentID),
		Text:      v.Text,
		Findings:  string(findingsJSON),
		Diff:      string(diffJSON),
		Author:    string(v.Author),
		Rationale: v.Rationale,
		Goal:      v.Goal,
		CreatedAt: v.CreatedAt.UnixNano(),
	}, nil
}

// rowToSession converts a db.Session to a session.Session.
func rowToSession(row db.Session) session.Session {
	return session.Session{
		ID:             row.ID,
		Name:           row.Name,
		Slug:           row.Slug,
		Language:       row.Language,
		State:          session.State(row.State),
		CurrentVersion: int(row.CurrentVersion),
		CreatedAt:      time.Unix(0, row.CreatedAt),
		UpdatedAt:      time.Unix(0, row.UpdatedAt),
	}
}

// rowToVersion converts a db.Version to a version.Version.
func rowToVersion(row db.Version) (version.Version, error) {
	var findings []analysis.Finding
	if err := json.Unmarshal([]byte(row.Findings), &findings); err != nil {
		return version.Version{}, fmt.Errorf("failed to unmarshal findings: %w", err)
	}

	if len(findings) == 0 {
		findings = nil
	}

	var hunks []patch.Hunk
	if err := json.Unmarshal([]byte(row.Diff), &hunks); err != nil {
		return version.Version{}, fmt.Errorf("failed to unmarshal diff: %w", err)
	}
	if len(hunks) == 0 {
		hunks = nil
	}

	return version.Version{
		ID:        int(row.ID),
		ParentID:  int(row.ParentID),
		Text:      row.Text,
		Findings:  findings,
		Diff:      hunks,
		Author:    version.Author(row.Author),
		Rationale: row.Rationale,
		Goal:      row.Goal,
		CreatedAt: time.Unix(0, row.CreatedAt),
	}, nil
}
