// Package suggest assembles bounded context for the suggestion collaborator
// and defines the interface a collaborator must satisfy.
package suggest

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Suggestion is a collaborator's candidate replacement and its explanation.
type Suggestion struct {
	Text      string `json:"text"`
	Rationale string `json:"rationale"`
}

// Collaborator produces a candidate from a context. Implementations are
// untrusted: their output is validated before it can affect stored state.
// Failures should wrap ErrTimeout, ErrMalformed or ErrRefused.
type Collaborator interface {
	Suggest(ctx context.Context, c Context) (Suggestion, error)
}

// CollaboratorFunc adapts a function to the Collaborator interface.
type CollaboratorFunc func(ctx context.Context, c Context) (Suggestion, error)

func (f CollaboratorFunc) Suggest(ctx context.Context, c Context) (Suggestion, error) {
	return f(ctx, c)
}

var (
	ErrTimeout   = errors.New("collaborator timed out")
	ErrMalformed = errors.New("collaborator response malformed")
	ErrRefused   = errors.New("collaborator refused")

	// ErrOverBudget means no part of the snippet fits the request budget,
	// so there is nothing to ask the collaborator about.
	ErrOverBudget = errors.New("nothing fits the request budget")
)

// Failure names a class of collaborator error.
type Failure string

const (
	FailureTimeout     Failure = "timeout"
	FailureMalformed   Failure = "malformed"
	FailureRefused     Failure = "refused"
	FailureUnavailable Failure = "unavailable"
	FailureBudget      Failure = "budget"
)

// Classify maps a collaborator error to its failure class. Errors that match
// none of the sentinels are reported as unavailable.
func Classify(err error) Failure {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrMalformed):
		return FailureMalformed
	case errors.Is(err, ErrRefused):
		return FailureRefused
	case errors.Is(err, ErrOverBudget):
		return FailureBudget
	default:
		return FailureUnavailable
	}
}

var reFence = regexp.MustCompile("(?s)```[ \\t]*(?:cpp|c\\+\\+|cxx|cc|c|h|hpp)?[ \\t]*\\r?\\n(.*?)```")

// ParseReply extracts the first fenced code block of a free-form reply as
// the candidate text. The remaining prose becomes the rationale.
func ParseReply(reply string) (Suggestion, error) {
	loc := reFence.FindStringSubmatchIndex(reply)
	if loc == nil {
		return Suggestion{}, ErrMalformed
	}

	code := strings.TrimSpace(reply[loc[2]:loc[3]])
	if code == "" {
		return Suggestion{}, ErrMalformed
	}

	rationale := strings.TrimSpace(reply[:loc[0]] + "\n" + reply[loc[1]:])
	return Suggestion{Text: code + "\n", Rationale: rationale}, nil
}
