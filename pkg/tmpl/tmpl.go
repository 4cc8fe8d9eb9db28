// Package tmpl renders the text/templates behind prompts and rule messages.
package tmpl

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// indent prefixes every non-empty line of s with n spaces.
func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}

// numbered prefixes each line of s with its 1-based number starting at first.
func numbered(first int, s string) string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	width := len(strconv.Itoa(first + len(lines) - 1))

	var b strings.Builder
	for i, l := range lines {
		num := strconv.Itoa(first + i)
		b.WriteString(strings.Repeat(" ", width-len(num)))
		b.WriteString(num)
		b.WriteString(" | ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// fence wraps s in a markdown code block tagged with lang.
func fence(lang, s string) string {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return "```" + lang + "\n" + s + "```"
}

var funcs = template.FuncMap{
	"join":     strings.Join,
	"trim":     strings.TrimSpace,
	"upper":    strings.ToUpper,
	"indent":   indent,
	"numbered": numbered,
	"fence":    fence,
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - join: Join string slice with separator (e.g., join .Args " ")
//   - trim, upper: strings.TrimSpace and strings.ToUpper
//   - indent: Indent every non-empty line (e.g., indent 4 .Text)
//   - numbered: Prefix lines with numbers (e.g., numbered .FirstLine .Text)
//   - fence: Wrap text in a markdown code block (e.g., fence "cpp" .Text)
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

// Check parses tmpl without executing it.
func Check(tmpl string) error {
	if _, err := template.New("").Funcs(funcs).Parse(tmpl); err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return nil
}
