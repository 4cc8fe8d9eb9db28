package version

import (
	"fmt"
	"sync"
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/patch"
)

// Tree is an append-only arena of versions indexed by parent. Readers never
// observe a version before it is fully stored, nor a half-moved current
// pointer.
type Tree struct {
	mu       sync.RWMutex
	versions []Version // versions[i].ID == i+1
	children map[int][]int
	current  int
}

// NewTree creates a tree whose root holds the user-submitted text.
func NewTree(text string, findings []analysis.Finding, createdAt time.Time) *Tree {
	root := Version{
		ID:        1,
		ParentID:  NoParent,
		Text:      text,
		Findings:  findings,
		Diff:      patch.Diff("", text),
		Author:    AuthorUser,
		CreatedAt: createdAt,
	}
	return &Tree{
		versions: []Version{root},
		children: make(map[int][]int),
		current:  root.ID,
	}
}

// CommitParams describes a new child of the current version.
type CommitParams struct {
	Text      string
	Findings  []analysis.Finding
	Diff      []patch.Hunk
	Author    Author
	Rationale string
	Goal      string
	CreatedAt time.Time
}

// Commit appends a child of the current version and advances the current
// pointer to it. When persist is non-nil it is called with the new version
// while the tree is locked; if it fails the tree is left unchanged.
func (t *Tree) Commit(p CommitParams, persist func(Version) error) (Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.lookup(t.current)
	if !ok {
		return Version{}, fmt.Errorf("commit on version %d: %w", t.current, ErrParentMissing)
	}

	if !p.Author.IsValid() {
		return Version{}, fmt.Errorf("commit: invalid author %q", p.Author)
	}

	got, err := patch.Apply(parent.Text, p.Diff)
	if err != nil {
		return Version{}, fmt.Errorf("commit on version %d: %w: %w", parent.ID, ErrDiffMismatch, err)
	}
	if got != p.Text {
		return Version{}, fmt.Errorf("commit on version %d: %w", parent.ID, ErrDiffMismatch)
	}

	v := Version{
		ID:        len(t.versions) + 1,
		ParentID:  parent.ID,
		Text:      p.Text,
		Findings:  p.Findings,
		Diff:      p.Diff,
		Author:    p.Author,
		Rationale: p.Rationale,
		Goal:      p.Goal,
		CreatedAt: p.CreatedAt,
	}.clone()

	if persist != nil {
		if err := persist(v.clone()); err != nil {
			return Version{}, fmt.Errorf("persist version %d: %w", v.ID, err)
		}
	}

	t.versions = append(t.versions, v)
	t.children[parent.ID] = append(t.children[parent.ID], v.ID)
	t.current = v.ID

	return v.clone(), nil
}

// Rollback moves the current pointer to id. Nothing is deleted: a later
// commit becomes a new child of id and the previous descendants remain
// reachable through History. persist works as for Commit.
func (t *Tree) Rollback(id int, persist func(Version) error) (Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.lookup(id)
	if !ok {
		return Version{}, fmt.Errorf("rollback to %d: %w", id, ErrNotFound)
	}

	if persist != nil {
		if err := persist(v.clone()); err != nil {
			return Version{}, fmt.Errorf("persist rollback to %d: %w", id, err)
		}
	}

	t.current = id
	return v.clone(), nil
}

// Current returns the version the next round builds on.
func (t *Tree) Current() Version {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.lookup(t.current)
	if !ok {
		panic(fmt.Sprintf("version tree: current version %d does not resolve", t.current))
	}
	return v.clone()
}

// Get returns the version with the given id.
func (t *Tree) Get(id int) (Version, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.lookup(id)
	if !ok {
		return Version{}, fmt.Errorf("version %d: %w", id, ErrNotFound)
	}
	return v.clone(), nil
}

// Len returns the number of versions in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.versions)
}

// History returns every version in id order, including those no longer on
// the path to the current version.
func (t *Tree) History() []Version {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Version, len(t.versions))
	for i, v := range t.versions {
		out[i] = v.clone()
	}
	return out
}

// Children returns the ids of the direct children of id in commit order.
func (t *Tree) Children(id int) ([]int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.lookup(id); !ok {
		return nil, fmt.Errorf("version %d: %w", id, ErrNotFound)
	}
	return append([]int(nil), t.children[id]...), nil
}

// Ancestors returns the path from the root to id, both included.
func (t *Tree) Ancestors(id int) ([]Version, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.lookup(id)
	if !ok {
		return nil, fmt.Errorf("version %d: %w", id, ErrNotFound)
	}

	path := []Version{v.clone()}
	for !v.IsRoot() {
		v, ok = t.lookup(v.ParentID)
		if !ok {
			return nil, fmt.Errorf("ancestor of %d: %w", id, ErrParentMissing)
		}
		path = append(path, v.clone())
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// DiffTo returns the diff from version a to version b.
func (t *Tree) DiffTo(a, b int) ([]patch.Hunk, error) {
	t.mu.RLock()
	va, okA := t.lookup(a)
	vb, okB := t.lookup(b)
	t.mu.RUnlock()

	if !okA {
		return nil, fmt.Errorf("version %d: %w", a, ErrNotFound)
	}
	if !okB {
		return nil, fmt.Errorf("version %d: %w", b, ErrNotFound)
	}
	return patch.Diff(va.Text, vb.Text), nil
}

// lookup must be called with t.mu held.
func (t *Tree) lookup(id int) (Version, bool) {
	if id < 1 || id > len(t.versions) {
		return Version{}, false
	}
	return t.versions[id-1], true
}
