// Package patch computes, applies, validates and renders line diffs between
// snippet texts. Lines keep their terminators so that joining the lines of a
// text reproduces it byte for byte.
package patch

import (
	"fmt"
	"strings"
)

// Kind identifies the operation of a hunk.
type Kind string

const (
	KindEqual  Kind = "equal"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Range addresses a run of lines. Start is the 0-based index of the first
// line; an empty range marks the position between lines.
type Range struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// End returns the index one past the last line of the range.
func (r Range) End() int { return r.Start + r.Count }

// Hunk is one segment of a diff. Lines hold the affected text including
// terminators: the old lines for equal and delete, the new lines for insert.
type Hunk struct {
	Kind  Kind     `json:"kind"`
	Old   Range    `json:"old_range"`
	New   Range    `json:"new_range"`
	Lines []string `json:"lines"`
}

func (h Hunk) String() string {
	return fmt.Sprintf("%s old[%d:%d] new[%d:%d]", h.Kind, h.Old.Start, h.Old.End(), h.New.Start, h.New.End())
}

// Lines splits text after every newline. The final line keeps whatever
// terminator it had, possibly none, so strings.Join(Lines(s), "") == s.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	out := make([]string, 0, strings.Count(text, "\n")+1)
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

// OnlyEqual reports whether hunks describe no change.
func OnlyEqual(hunks []Hunk) bool {
	for _, h := range hunks {
		if h.Kind != KindEqual {
			return false
		}
	}
	return true
}

// DiffStats summarizes a diff.
type DiffStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

func (s DiffStats) String() string {
	return fmt.Sprintf("+%d -%d", s.Added, s.Removed)
}

// Stats counts inserted and deleted lines.
func Stats(hunks []Hunk) DiffStats {
	var s DiffStats
	for _, h := range hunks {
		switch h.Kind {
		case KindInsert:
			s.Added += len(h.Lines)
		case KindDelete:
			s.Removed += len(h.Lines)
		}
	}
	return s
}
