// Package version holds the immutable, branching history of a snippet.
package version

import (
	"errors"
	"slices"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/patch"
)

var (
	// ErrNotFound is returned when a version id is not part of the tree.
	ErrNotFound = errors.New("version not found")
	// ErrParentMissing signals a corrupted tree whose current pointer does
	// not resolve. Correct callers never observe it.
	ErrParentMissing = errors.New("parent version missing")
	// ErrDiffMismatch is returned when a version's diff does not reproduce
	// its text from the parent's text.
	ErrDiffMismatch = errors.New("diff does not reproduce version text")
	// ErrCorrupt is returned by Replay for records that violate the tree
	// invariants.
	ErrCorrupt = errors.New("corrupt version history")
)

// Author tags who produced a version.
type Author string

const (
	AuthorUser Author = "user"
	AuthorAI   Author = "ai"
)

// IsValid reports whether a is a known author tag.
func (a Author) IsValid() bool {
	return a == AuthorUser || a == AuthorAI
}

// NoParent is the parent id of the root version.
const NoParent = 0

// Version is one immutable snapshot of the snippet. IDs start at 1 and are
// assigned in commit order; the root has ParentID NoParent. Diff is the edit
// script from the parent's text (from the empty text for the root).
type Version struct {
	ID        int                `json:"id"`
	ParentID  int                `json:"parent_id"`
	Text      string             `json:"text"`
	Findings  []analysis.Finding `json:"findings"`
	Diff      []patch.Hunk       `json:"diff"`
	Author    Author             `json:"author"`
	Rationale string             `json:"rationale,omitempty"`
	Goal      string             `json:"goal,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// IsRoot reports whether v is the root of its tree.
func (v Version) IsRoot() bool {
	return v.ParentID == NoParent
}

// Summary is a one-line description used in history listings.
func (v Version) Summary() string {
	switch {
	case v.IsRoot():
		return "initial snippet"
	case v.Goal != "":
		return v.Goal + " (" + patch.Stats(v.Diff).String() + ")"
	default:
		return string(v.Author) + " edit (" + patch.Stats(v.Diff).String() + ")"
	}
}

// clone copies the slices of v so callers cannot alter stored state.
func (v Version) clone() Version {
	v.Findings = slices.Clone(v.Findings)
	v.Diff = slices.Clone(v.Diff)
	return v
}
