package analysis

import (
	"fmt"
	"sort"

	"github.com/colonyops/refine/pkg/tmpl"
	"github.com/rs/zerolog"
)

// Analyzer runs a fixed rule set over snippet text. For a given registry the
// result depends only on the text, so Analyze is safe for concurrent use.
type Analyzer struct {
	registry *Registry
	log      zerolog.Logger
}

// New creates an Analyzer over the given registry.
func New(registry *Registry, log zerolog.Logger) *Analyzer {
	return &Analyzer{registry: registry, log: log}
}

// Rules returns the effective rule definitions in registration order.
func (a *Analyzer) Rules() []Definition {
	return a.registry.Definitions()
}

type ordered struct {
	finding Finding
	rule    int
	seq     int
}

// Analyze returns the findings for text ordered by starting line, then rule
// id, then rule registration order. It never fails: a rule that cannot make
// sense of a region contributes nothing for it.
func (a *Analyzer) Analyze(text string) []Finding {
	if text == "" {
		return []Finding{}
	}

	view := Scan(text)

	var all []ordered
	for i, e := range a.registry.entries {
		for j, m := range a.check(e, view) {
			all = append(all, ordered{
				finding: a.finding(e.def, m, len(view.Lines)),
				rule:    i,
				seq:     j,
			})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		x, y := all[i], all[j]
		if x.finding.LineStart != y.finding.LineStart {
			return x.finding.LineStart < y.finding.LineStart
		}
		if x.finding.RuleID != y.finding.RuleID {
			return x.finding.RuleID < y.finding.RuleID
		}
		if x.rule != y.rule {
			return x.rule < y.rule
		}
		return x.seq < y.seq
	})

	findings := make([]Finding, len(all))
	for i, o := range all {
		findings[i] = o.finding
	}
	return findings
}

// check runs a single rule, degrading a panic into zero matches.
func (a *Analyzer) check(e entry, v *View) (matches []Match) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Debug().
				Str("rule", e.def.ID).
				Str("panic", fmt.Sprint(r)).
				Msg("analysis degraded: rule skipped")
			matches = nil
		}
	}()
	return e.rule.Check(v)
}

func (a *Analyzer) finding(def Definition, m Match, lines int) Finding {
	start, end := clampRange(m.LineStart, m.LineEnd, lines)

	msg, err := tmpl.Render(def.Message, m.Vars)
	if err != nil {
		a.log.Debug().Err(err).Str("rule", def.ID).Msg("message template failed")
		msg = def.Message
	}

	return Finding{
		RuleID:    def.ID,
		Category:  def.Category,
		Severity:  def.Severity,
		LineStart: start,
		LineEnd:   end,
		Message:   msg,
	}
}

func clampRange(start, end, lines int) (int, int) {
	if start < 1 {
		start = 1
	}
	if start > lines {
		start = lines
	}
	if end < start {
		end = start
	}
	if end > lines {
		end = lines
	}
	return start, end
}
