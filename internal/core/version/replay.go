package version

import (
	"fmt"

	"github.com/colonyops/refine/internal/core/patch"
)

// Replay rebuilds a tree from persisted versions in id order. It verifies
// that ids are sequential from 1, that the first version is the only root,
// that every parent precedes its child, that every diff reproduces its text
// from the parent's text, and that current names a version.
func Replay(records []Version, current int) (*Tree, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no versions: %w", ErrCorrupt)
	}

	t := &Tree{
		versions: make([]Version, 0, len(records)),
		children: make(map[int][]int),
	}

	for i, r := range records {
		if r.ID != i+1 {
			return nil, fmt.Errorf("record %d has id %d: %w", i, r.ID, ErrCorrupt)
		}
		if !r.Author.IsValid() {
			return nil, fmt.Errorf("version %d: invalid author %q: %w", r.ID, r.Author, ErrCorrupt)
		}

		base := ""
		switch {
		case r.ID == 1:
			if !r.IsRoot() {
				return nil, fmt.Errorf("version 1 has parent %d: %w", r.ParentID, ErrCorrupt)
			}
		case r.IsRoot():
			return nil, fmt.Errorf("version %d is a second root: %w", r.ID, ErrCorrupt)
		case r.ParentID < 1, r.ParentID >= r.ID:
			return nil, fmt.Errorf("version %d: parent %d: %w: %w", r.ID, r.ParentID, ErrParentMissing, ErrCorrupt)
		default:
			base = t.versions[r.ParentID-1].Text
		}

		got, err := patch.Apply(base, r.Diff)
		if err != nil || got != r.Text {
			return nil, fmt.Errorf("version %d: %w: %w", r.ID, ErrDiffMismatch, ErrCorrupt)
		}

		t.versions = append(t.versions, r.clone())
		if !r.IsRoot() {
			t.children[r.ParentID] = append(t.children[r.ParentID], r.ID)
		}
	}

	if _, ok := t.lookup(current); !ok {
		return nil, fmt.Errorf("current version %d: %w: %w", current, ErrNotFound, ErrCorrupt)
	}
	t.current = current

	return t, nil
}
