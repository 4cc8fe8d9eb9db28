package suggest

import (
	"fmt"
	"strings"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/pkg/tmpl"
)

// Chunk is a run of whole top-level declarations of the snippet.
type Chunk struct {
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Text      string `json:"text"`
	Selected  bool   `json:"selected"`
}

// Context is the bounded request handed to a collaborator. Chunks cover the
// whole snippet in order; only selected chunks are shown to the
// collaborator. Findings are those located in selected chunks.
type Context struct {
	Goal     string             `json:"goal"`
	Findings []analysis.Finding `json:"findings"`
	Chunks   []Chunk            `json:"chunks"`
	Complete bool               `json:"complete"`
	Budget   int                `json:"budget"`
}

// GapMarker stands in for omitted declarations between two selected runs
// of a partial request. Replies must keep one marker line per gap.
const GapMarker = "// ... unchanged declarations ..."

// runs returns the selected chunks grouped into maximal contiguous runs.
func (c Context) runs() [][]Chunk {
	var (
		out  [][]Chunk
		open bool
	)
	for _, ch := range c.Chunks {
		if !ch.Selected {
			open = false
			continue
		}
		if !open {
			out = append(out, nil)
			open = true
		}
		out[len(out)-1] = append(out[len(out)-1], ch)
	}
	return out
}

// Code returns the text of the selected chunks in original order. Runs that
// are not adjacent in the snippet are separated by a GapMarker line.
func (c Context) Code() string {
	var b strings.Builder
	for i, run := range c.runs() {
		if i > 0 {
			b.WriteString(GapMarker + "\n")
		}
		for _, ch := range run {
			b.WriteString(ch.Text)
		}
	}
	return b.String()
}

// Empty reports whether nothing of the snippet made it into the request.
func (c Context) Empty() bool {
	return !c.Complete && len(c.runs()) == 0
}

// Gaps returns the number of GapMarker lines in Code.
func (c Context) Gaps() int {
	return max(len(c.runs())-1, 0)
}

// Omitted returns the number of chunks left out of the request.
func (c Context) Omitted() int {
	n := 0
	for _, ch := range c.Chunks {
		if !ch.Selected {
			n++
		}
	}
	return n
}

// Size returns the budgeted size of the context in bytes. Gap markers are
// not counted.
func (c Context) Size() int {
	n := len(c.Goal)
	for _, ch := range c.Chunks {
		if ch.Selected {
			n += len(ch.Text)
		}
	}
	for _, f := range c.Findings {
		n += findingCost(f)
	}
	return n
}

// Assemble turns a collaborator reply into a full candidate snippet. For a
// complete context the reply is the candidate. Otherwise the reply is split
// at GapMarker lines and each section replaces its run of selected chunks in
// place, so omitted chunks keep their position. A reply whose section count
// does not match the runs fails with ErrMalformed.
func (c Context) Assemble(reply string) (string, error) {
	if c.Complete {
		return reply, nil
	}

	runs := c.runs()
	if len(runs) == 0 {
		return "", fmt.Errorf("%w: request carried no code", ErrOverBudget)
	}

	sections := splitGaps(reply)
	if len(sections) != len(runs) {
		return "", fmt.Errorf("%w: reply has %d sections, request had %d", ErrMalformed, len(sections), len(runs))
	}

	var (
		b    strings.Builder
		next int
		open bool
	)
	for _, ch := range c.Chunks {
		if !ch.Selected {
			open = false
			b.WriteString(ch.Text)
			continue
		}
		if open {
			continue
		}
		open = true
		section := sections[next]
		next++
		b.WriteString(section)
		if section != "" && !strings.HasSuffix(section, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// splitGaps cuts reply at lines that consist of GapMarker.
func splitGaps(reply string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.SplitAfter(reply, "\n") {
		if strings.TrimSpace(line) == GapMarker {
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteString(line)
	}
	return append(out, cur.String())
}

type findingGroup struct {
	Title    string
	Findings []analysis.Finding
}

// groups returns findings grouped by category in first-seen order.
func (c Context) groups() []findingGroup {
	var out []findingGroup
	index := make(map[analysis.Category]int)
	for _, f := range c.Findings {
		i, ok := index[f.Category]
		if !ok {
			i = len(out)
			index[f.Category] = i
			out = append(out, findingGroup{Title: f.Category.Title()})
		}
		out[i].Findings = append(out[i].Findings, f)
	}
	return out
}

// DefaultPrompt is the template used by Prompt.
const DefaultPrompt = `You are a C++ expert reviewing game development code.
Improve the code below according to the goal and the static analysis findings.
Focus on performance, readability and idiomatic modern C++.
{{- if .Complete }}
Reply with the complete improved code in a single ` + "```cpp" + ` block, followed by an explanation of the changes.
{{- else }}
Only the most relevant declarations are shown; {{ .Omitted }} other declarations are unchanged and must not be repeated.
{{- if .Gaps }}
Lines reading "{{ .GapMarker }}" stand for omitted code. Keep each of them, in order, on a line of its own.
{{- end }}
Reply with improved versions of exactly these declarations in a single ` + "```cpp" + ` block, followed by an explanation of the changes.
{{- end }}

Goal: {{ .Goal }}
{{- if .Groups }}

Static analysis:
{{- range .Groups }}

## {{ .Title }}
{{- range .Findings }}
- Line {{ .LineStart }} [{{ .Severity }}] {{ .Message }}
{{- end }}
{{- end }}
{{- end }}

{{ fence "cpp" .Code }}
`

// Prompt renders the context with DefaultPrompt.
func (c Context) Prompt() (string, error) {
	return c.Render(DefaultPrompt, nil)
}

// Render renders the context through a text/template. The template sees
// Goal, Code, Complete, Omitted, Gaps, GapMarker, Budget, Groups (Title,
// Findings) and the user supplied Vars.
func (c Context) Render(template string, vars map[string]any) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	return tmpl.Render(template, map[string]any{
		"Vars":      vars,
		"Goal":      c.Goal,
		"Code":      c.Code(),
		"Complete":  c.Complete,
		"Omitted":   c.Omitted(),
		"Gaps":      c.Gaps(),
		"GapMarker": GapMarker,
		"Budget":    c.Budget,
		"Groups":    c.groups(),
	})
}
