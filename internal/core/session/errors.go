package session

import "errors"

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrClosed is returned for operations on a torn down session.
	ErrClosed = errors.New("session closed")
	// ErrRoundInProgress is returned when a round is requested, or the
	// version pointer moved, while another round is running.
	ErrRoundInProgress = errors.New("round in progress")
	// ErrSuggestionUnavailable marks a round rejected because the
	// collaborator timed out, refused or answered with something unusable.
	ErrSuggestionUnavailable = errors.New("suggestion unavailable")
	// ErrInvalidPatch marks a round rejected by candidate validation.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrCancelled marks a round cancelled while awaiting a suggestion.
	ErrCancelled = errors.New("round cancelled")
	// ErrStorage marks a round rejected because the new version could not
	// be persisted.
	ErrStorage = errors.New("storage failure")
)
