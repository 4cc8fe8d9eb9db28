package patch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHunkMismatch is returned by Apply when hunks do not describe the text
// they are applied to.
var ErrHunkMismatch = errors.New("hunk does not match text")

// Apply replays hunks against old and returns the resulting text. Every
// equal and delete hunk must match old exactly and the hunks must cover old
// from start to end.
func Apply(old string, hunks []Hunk) (string, error) {
	src := Lines(old)

	var (
		b   strings.Builder
		pos int
		out int
	)
	b.Grow(len(old))

	for i, h := range hunks {
		if h.Old.Start != pos || h.New.Start != out {
			return "", fmt.Errorf("hunk %d (%s): expected old %d new %d: %w", i, h, pos, out, ErrHunkMismatch)
		}

		switch h.Kind {
		case KindEqual, KindDelete:
			if h.Old.Count != len(h.Lines) || pos+len(h.Lines) > len(src) {
				return "", fmt.Errorf("hunk %d (%s): range exceeds text: %w", i, h, ErrHunkMismatch)
			}
			for k, line := range h.Lines {
				if src[pos+k] != line {
					return "", fmt.Errorf("hunk %d (%s): line %d differs: %w", i, h, pos+k+1, ErrHunkMismatch)
				}
			}
			pos += len(h.Lines)
			if h.Kind == KindEqual {
				for _, line := range h.Lines {
					b.WriteString(line)
				}
				out += len(h.Lines)
			}
		case KindInsert:
			if h.New.Count != len(h.Lines) || h.Old.Count != 0 {
				return "", fmt.Errorf("hunk %d (%s): bad insert range: %w", i, h, ErrHunkMismatch)
			}
			for _, line := range h.Lines {
				b.WriteString(line)
			}
			out += len(h.Lines)
		default:
			return "", fmt.Errorf("hunk %d: unknown kind %q: %w", i, h.Kind, ErrHunkMismatch)
		}
	}

	if pos != len(src) {
		return "", fmt.Errorf("hunks end at line %d of %d: %w", pos, len(src), ErrHunkMismatch)
	}

	return b.String(), nil
}
