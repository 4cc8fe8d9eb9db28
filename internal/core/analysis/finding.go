// Package analysis implements the lexical rule engine that surfaces
// actionable findings in C++ snippet text without parsing it.
package analysis

import "fmt"

// Severity ranks how urgently a finding should be addressed.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities from least (0) to most urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	default:
		return false
	}
}

// ParseSeverity converts a configuration string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Category groups rules for presentation in prompts and reports.
type Category string

const (
	CategoryMemory      Category = "memory_management"
	CategoryModern      Category = "modern_cpp"
	CategoryStyle       Category = "code_style"
	CategoryPerformance Category = "performance"
	CategoryBugs        Category = "potential_bugs"
	CategoryConcurrency Category = "concurrency"
	CategoryDesign      Category = "design"
)

// Title returns a human readable heading for the category.
func (c Category) Title() string {
	switch c {
	case CategoryMemory:
		return "Memory Management"
	case CategoryModern:
		return "Modern C++"
	case CategoryStyle:
		return "Code Style"
	case CategoryPerformance:
		return "Performance"
	case CategoryBugs:
		return "Potential Bugs"
	case CategoryConcurrency:
		return "Concurrency"
	case CategoryDesign:
		return "Design"
	default:
		return string(c)
	}
}

// Finding is a single structural issue located in a snippet. Findings are
// computed per analysis call and only ever stored alongside the version
// they were computed against.
type Finding struct {
	RuleID    string   `json:"rule_id"`
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	LineStart int      `json:"line_start"`
	LineEnd   int      `json:"line_end"`
	Message   string   `json:"message"`
}

// String formats the finding as a single report line.
func (f Finding) String() string {
	if f.LineEnd > f.LineStart {
		return fmt.Sprintf("L%d-%d [%s] %s: %s", f.LineStart, f.LineEnd, f.Severity, f.RuleID, f.Message)
	}
	return fmt.Sprintf("L%d [%s] %s: %s", f.LineStart, f.Severity, f.RuleID, f.Message)
}
