package suggest

import (
	"sort"
	"strings"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/patch"
)

// Builder selects the part of a snippet that fits a size budget.
type Builder struct {
	// Budget bounds the bytes of code, rendered findings and goal. Zero or
	// less disables the bound.
	Budget int
}

// NewBuilder creates a Builder with the given budget.
func NewBuilder(budget int) *Builder {
	return &Builder{Budget: budget}
}

// Build returns the context for text, its findings and the user's goal. If
// everything fits the budget it is all included. Otherwise the text is cut
// at top-level declaration boundaries and whole chunks are chosen: chunks
// with findings first, by highest severity then earliest finding, then the
// rest in original order. A chunk that does not fit is skipped. The goal is
// always included.
func (b *Builder) Build(text string, findings []analysis.Finding, goal string) Context {
	ctx := Context{Goal: goal, Budget: b.Budget}

	total := len(goal) + len(text)
	for _, f := range findings {
		total += findingCost(f)
	}
	if b.Budget <= 0 || total <= b.Budget {
		ctx.Complete = true
		ctx.Findings = findings
		ctx.Chunks = []Chunk{{LineStart: 1, LineEnd: len(patch.Lines(text)), Text: text, Selected: true}}
		return ctx
	}

	chunks := Chunks(text)
	owned := make([][]analysis.Finding, len(chunks))
	for _, f := range findings {
		if i := chunkOf(chunks, f.LineStart); i >= 0 {
			owned[i] = append(owned[i], f)
		}
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		fa, fb := owned[order[x]], owned[order[y]]
		switch {
		case len(fa) > 0 && len(fb) == 0:
			return true
		case len(fa) == 0:
			return false
		}
		if sa, sb := maxSeverity(fa), maxSeverity(fb); sa != sb {
			return sa > sb
		}
		return fa[0].LineStart < fb[0].LineStart
	})

	remaining := b.Budget - len(goal)
	for _, i := range order {
		cost := len(chunks[i].Text)
		for _, f := range owned[i] {
			cost += findingCost(f)
		}
		if cost > remaining {
			continue
		}
		remaining -= cost
		chunks[i].Selected = true
	}

	for i, ch := range chunks {
		if ch.Selected {
			ctx.Findings = append(ctx.Findings, owned[i]...)
		}
	}
	sort.SliceStable(ctx.Findings, func(i, j int) bool {
		return ctx.Findings[i].LineStart < ctx.Findings[j].LineStart
	})

	ctx.Chunks = chunks
	return ctx
}

// Chunks splits text at top-level declaration boundaries. A chunk ends on a
// line where the brace depth is back to zero and the statement is
// terminated; blank and comment lines attach to the following chunk.
func Chunks(text string) []Chunk {
	raw := patch.Lines(text)
	view := analysis.Scan(text)

	var (
		out   []Chunk
		start = 0
	)
	for i, l := range view.Lines {
		code := strings.TrimSpace(l.Code)
		if code == "" {
			continue
		}

		depthAfter := 0
		if i+1 < len(view.Lines) {
			depthAfter = view.Lines[i+1].Depth
		}
		if depthAfter != 0 || !terminates(code) {
			continue
		}

		out = append(out, Chunk{
			LineStart: start + 1,
			LineEnd:   i + 1,
			Text:      strings.Join(raw[start:i+1], ""),
		})
		start = i + 1
	}

	if start < len(raw) {
		out = append(out, Chunk{
			LineStart: start + 1,
			LineEnd:   len(raw),
			Text:      strings.Join(raw[start:], ""),
		})
	}
	return out
}

func terminates(code string) bool {
	return strings.HasPrefix(code, "#") ||
		strings.HasSuffix(code, ";") ||
		strings.HasSuffix(code, "}")
}

func chunkOf(chunks []Chunk, line int) int {
	for i, ch := range chunks {
		if line >= ch.LineStart && line <= ch.LineEnd {
			return i
		}
	}
	return -1
}

func maxSeverity(findings []analysis.Finding) int {
	best := 0
	for _, f := range findings {
		best = max(best, f.Severity.Rank())
	}
	return best
}

// findingCost is the budgeted size of a finding as it appears in a request.
func findingCost(f analysis.Finding) int {
	return len(f.String()) + 1
}
