package patch

import (
	"fmt"
	"strings"

	"github.com/colonyops/refine/internal/core/analysis"
)

// Reason classifies why a candidate text was rejected.
type Reason string

const (
	ReasonEmpty      Reason = "empty"
	ReasonNoOp       Reason = "no_op"
	ReasonUnbalanced Reason = "unbalanced"
	ReasonTooLarge   Reason = "too_large"
)

// ValidationError reports a rejected candidate.
type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "invalid patch: " + string(e.Reason)
	}
	return fmt.Sprintf("invalid patch: %s: %s", e.Reason, e.Detail)
}

// ValidateOptions bounds the size of a candidate. Zero disables a limit.
type ValidateOptions struct {
	MaxLines int
	MaxBytes int
}

// Validate checks a candidate replacement for original. It rejects text that
// is empty, larger than the configured limits, identical to original once
// whitespace is normalized, or has mismatched braces, parentheses or
// brackets outside comments and literals.
func Validate(candidate, original string, opts ValidateOptions) error {
	if strings.TrimSpace(candidate) == "" {
		return &ValidationError{Reason: ReasonEmpty}
	}

	if err := CheckSize(candidate, opts); err != nil {
		return err
	}

	if normalize(candidate) == normalize(original) {
		return &ValidationError{Reason: ReasonNoOp}
	}

	if detail := checkBalance(candidate); detail != "" {
		return &ValidationError{Reason: ReasonUnbalanced, Detail: detail}
	}

	return nil
}

// CheckSize rejects text over the configured limits with ReasonTooLarge.
// It is cheap enough to run on untrusted text before diffing it.
func CheckSize(text string, opts ValidateOptions) error {
	if opts.MaxBytes > 0 && len(text) > opts.MaxBytes {
		return &ValidationError{
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%d bytes (max %d)", len(text), opts.MaxBytes),
		}
	}
	if lines := len(Lines(text)); opts.MaxLines > 0 && lines > opts.MaxLines {
		return &ValidationError{
			Reason: ReasonTooLarge,
			Detail: fmt.Sprintf("%d lines (max %d)", lines, opts.MaxLines),
		}
	}
	return nil
}

// normalize drops whitespace unless it separates two word characters, so
// "a+b" and "a + b" compare equal while "int x" and "intx" do not.
func normalize(s string) string {
	var b strings.Builder
	pending := false
	var last byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f' {
			pending = b.Len() > 0
			continue
		}
		if pending && isWord(last) && isWord(c) {
			b.WriteByte(' ')
		}
		pending = false
		b.WriteByte(c)
		last = c
	}
	return b.String()
}

func isWord(c byte) bool {
	return c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// checkBalance returns a description of the first bracket mismatch, or an
// empty string when every opener is closed by its matching closer.
func checkBalance(text string) string {
	type open struct {
		ch   byte
		line int
	}
	var stack []open

	for i, line := range analysis.Mask(text) {
		for j := 0; j < len(line); j++ {
			c := line[j]
			switch c {
			case '(', '[', '{':
				stack = append(stack, open{ch: c, line: i + 1})
			case ')', ']', '}':
				if len(stack) == 0 {
					return fmt.Sprintf("unexpected %q on line %d", c, i+1)
				}
				top := stack[len(stack)-1]
				if top.ch != closers[c] {
					return fmt.Sprintf("%q on line %d closes %q from line %d", c, i+1, top.ch, top.line)
				}
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return fmt.Sprintf("unclosed %q from line %d", top.ch, top.line)
	}
	return ""
}
