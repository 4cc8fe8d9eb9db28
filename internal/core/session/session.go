// Package session defines session domain types, round results and the
// persistence interface.
package session

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/colonyops/refine/internal/core/version"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a name to a URL-safe slug.
// "My Session Name" -> "my-session-name"
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// NameFromPath derives a session name from a snippet's file path.
// "src/game_physics.cpp" -> "game_physics"
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// State represents the lifecycle state of a session.
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// LanguageCPP is the only analyzed language.
const LanguageCPP = "cpp"

// Session is one snippet under iterative improvement. Its versions live in
// a version.Tree; CurrentVersion mirrors the tree's current pointer as last
// persisted.
type Session struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Language       string    `json:"language"`
	State          State     `json:"state"`
	CurrentVersion int       `json:"current_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsClosed reports whether the session was torn down.
func (s *Session) IsClosed() bool {
	return s.State == StateClosed
}

// MarkClosed transitions the session to the closed state.
func (s *Session) MarkClosed(now time.Time) {
	s.State = StateClosed
	s.UpdatedAt = now
}

// HistoryEntry is one row of an exported history.
type HistoryEntry struct {
	ID        int            `json:"id"`
	ParentID  *int           `json:"parent_id"`
	Author    version.Author `json:"author"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   string         `json:"summary"`
	Current   bool           `json:"current"`
}

// NewHistoryEntry summarizes v. The root has a nil ParentID.
func NewHistoryEntry(v version.Version, current int) HistoryEntry {
	e := HistoryEntry{
		ID:        v.ID,
		Author:    v.Author,
		CreatedAt: v.CreatedAt,
		Summary:   v.Summary(),
		Current:   v.ID == current,
	}
	if !v.IsRoot() {
		parent := v.ParentID
		e.ParentID = &parent
	}
	return e
}

// Store persists sessions and their versions. Versions are append-only:
// a session is rebuilt by replaying its versions in id order.
type Store interface {
	// Create stores a new session together with its root version.
	Create(ctx context.Context, sess Session, root version.Version) error
	// Get returns a session by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Session, error)
	// List returns all sessions, newest first.
	List(ctx context.Context) ([]Session, error)
	// AppendVersion stores v and makes it the session's current version.
	AppendVersion(ctx context.Context, sessionID string, v version.Version) error
	// SetCurrent moves the session's current version pointer.
	SetCurrent(ctx context.Context, sessionID string, versionID int) error
	// Versions returns every version of the session in id order.
	Versions(ctx context.Context, sessionID string) ([]version.Version, error)
	// SetState persists the lifecycle state and UpdatedAt of sess. There is
	// no delete: closed sessions keep their history.
	SetState(ctx context.Context, sess Session) error
}
