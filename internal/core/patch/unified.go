package patch

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// UnifiedOptions controls unified diff rendering.
type UnifiedOptions struct {
	OrigName string
	NewName  string
	Context  int
}

type unifiedLine struct {
	kind     Kind
	text     string
	old, new int // 0-based positions before this line is consumed
}

// Unified renders hunks as a unified diff for review. Lines without a
// terminator are rendered as if they had one. Identical texts render as an
// empty string.
func Unified(hunks []Hunk, opts UnifiedOptions) (string, error) {
	if OnlyEqual(hunks) {
		return "", nil
	}
	if opts.OrigName == "" {
		opts.OrigName = "a"
	}
	if opts.NewName == "" {
		opts.NewName = "b"
	}
	ctx := max(opts.Context, 0)

	var lines []unifiedLine
	var o, n int
	for _, h := range hunks {
		for _, l := range h.Lines {
			lines = append(lines, unifiedLine{kind: h.Kind, text: l, old: o, new: n})
			switch h.Kind {
			case KindEqual:
				o++
				n++
			case KindDelete:
				o++
			case KindInsert:
				n++
			}
		}
	}

	fd := &diff.FileDiff{OrigName: opts.OrigName, NewName: opts.NewName}
	for i := 0; i < len(lines); {
		if lines[i].kind == KindEqual {
			i++
			continue
		}

		start := max(i-ctx, 0)
		j := i
		for {
			for j < len(lines) && lines[j].kind != KindEqual {
				j++
			}
			k := j
			for k < len(lines) && lines[k].kind == KindEqual {
				k++
			}
			if k < len(lines) && k-j <= 2*ctx {
				j = k
				continue
			}
			break
		}
		end := min(j+ctx, len(lines))

		fd.Hunks = append(fd.Hunks, unifiedHunk(lines[start:end]))
		i = end
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("render unified diff: %w", err)
	}
	return string(out), nil
}

func unifiedHunk(lines []unifiedLine) *diff.Hunk {
	var (
		body        strings.Builder
		origN, newN int32
	)
	for _, l := range lines {
		switch l.kind {
		case KindEqual:
			body.WriteByte(' ')
			origN++
			newN++
		case KindDelete:
			body.WriteByte('-')
			origN++
		case KindInsert:
			body.WriteByte('+')
			newN++
		}
		body.WriteString(l.text)
		if !strings.HasSuffix(l.text, "\n") {
			body.WriteByte('\n')
		}
	}

	first := lines[0]
	return &diff.Hunk{
		OrigStartLine: startLine(first.old, origN),
		OrigLines:     origN,
		NewStartLine:  startLine(first.new, newN),
		NewLines:      newN,
		Body:          []byte(body.String()),
	}
}

// startLine follows the unified convention that an empty range names the
// line before it.
func startLine(pos int, count int32) int32 {
	if count == 0 {
		return int32(pos)
	}
	return int32(pos) + 1
}
