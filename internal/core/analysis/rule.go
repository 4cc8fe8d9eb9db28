package analysis

import (
	"fmt"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/colonyops/refine/pkg/tmpl"
)

// Definition describes a rule independently of how it matches.
// Message is a text/template rendered with the variables of each Match.
type Definition struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Match is a raw hit produced by a rule before it is turned into a Finding.
type Match struct {
	LineStart int
	LineEnd   int
	Vars      map[string]string
}

// Rule is a pure predicate over the structural view of a snippet. Adding a
// rule means registering a new implementation, never changing another.
type Rule interface {
	Definition() Definition
	Check(v *View) []Match
}

// Override adjusts a registered rule's definition from configuration.
type Override struct {
	Severity Severity
	Message  string
}

type entry struct {
	rule Rule
	def  Definition
}

// Registry holds rules in registration order.
type Registry struct {
	entries []entry
	index   map[string]int
}

// NewRegistry creates a registry containing the given rules.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry with all built-in rules.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register appends a rule. Rule IDs must be unique.
func (r *Registry) Register(rule Rule) error {
	def := rule.Definition()
	if def.ID == "" {
		return fmt.Errorf("rule has empty id")
	}
	if _, exists := r.index[def.ID]; exists {
		return fmt.Errorf("rule %q already registered", def.ID)
	}
	if !def.Severity.IsValid() {
		return fmt.Errorf("rule %q: invalid severity %q", def.ID, def.Severity)
	}
	r.index[def.ID] = len(r.entries)
	r.entries = append(r.entries, entry{rule: rule, def: def})
	return nil
}

// Definitions returns the effective definitions in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, len(r.entries))
	for i, e := range r.entries {
		defs[i] = e.def
	}
	return defs
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Configure applies overrides and removes rules whose IDs match any of the
// disabled glob patterns. It returns a new registry and leaves r untouched.
func (r *Registry) Configure(overrides map[string]Override, disabled []string) (*Registry, error) {
	for _, pattern := range disabled {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid disable pattern %q", pattern)
		}
	}
	for id := range overrides {
		if _, ok := r.index[id]; !ok {
			return nil, fmt.Errorf("override for unknown rule %q", id)
		}
	}

	out := &Registry{index: make(map[string]int)}
	for _, e := range r.entries {
		if slices.ContainsFunc(disabled, func(p string) bool {
			ok, _ := doublestar.Match(p, e.def.ID)
			return ok
		}) {
			continue
		}

		def := e.def
		if o, ok := overrides[def.ID]; ok {
			if o.Severity != "" {
				if !o.Severity.IsValid() {
					return nil, fmt.Errorf("rule %q: invalid severity %q", def.ID, o.Severity)
				}
				def.Severity = o.Severity
			}
			if o.Message != "" {
				def.Message = o.Message
			}
		}

		out.index[def.ID] = len(out.entries)
		out.entries = append(out.entries, entry{rule: e.rule, def: def})
	}
	return out, nil
}

// CheckMessage reports whether a message template parses.
func CheckMessage(message string) error {
	return tmpl.Check(message)
}
