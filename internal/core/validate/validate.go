// Package validate provides shared validation functions for command input.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// MaxGoalLen bounds the free-form goal of a round.
const MaxGoalLen = 2000

// SessionName validates a session name is non-empty after trimming whitespace.
func SessionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// SessionID validates a session id: non-empty lowercase ASCII letters and digits.
func SessionID(id string) error {
	if id == "" {
		return errors.New("session id is required")
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return fmt.Errorf("session id %q must contain only lowercase letters and digits", id)
		}
	}
	return nil
}

// Goal validates the goal text of a round.
func Goal(goal string) error {
	if strings.TrimSpace(goal) == "" {
		return errors.New("goal is required")
	}
	if n := utf8.RuneCountInString(goal); n > MaxGoalLen {
		return fmt.Errorf("goal is %d characters (max %d)", n, MaxGoalLen)
	}
	return nil
}

// Snippet validates source text handed to a new session.
func Snippet(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("snippet is empty")
	}
	if !utf8.ValidString(text) {
		return errors.New("snippet is not valid UTF-8")
	}
	if strings.IndexByte(text, 0) >= 0 {
		return errors.New("snippet contains NUL bytes")
	}
	return nil
}

// SessionNameField returns a criterio validator for session names.
func SessionNameField(field, name string) error {
	return criterio.Run(field, name, SessionName)
}

// GoalField returns a criterio validator for goals.
func GoalField(field, goal string) error {
	return criterio.Run(field, goal, Goal)
}
