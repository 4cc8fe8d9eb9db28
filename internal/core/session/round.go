package session

import (
	"time"

	"github.com/colonyops/refine/internal/core/analysis"
	"github.com/colonyops/refine/internal/core/patch"
	"github.com/colonyops/refine/internal/core/version"
)

// RoundState is the step of the improvement round a session is in.
type RoundState string

const (
	RoundIdle               RoundState = "idle"
	RoundAnalyzing          RoundState = "analyzing"
	RoundAwaitingSuggestion RoundState = "awaiting_suggestion"
	RoundDiffing            RoundState = "diffing"
	RoundValidating         RoundState = "validating"
	RoundCommitted          RoundState = "committed"
	RoundRejected           RoundState = "rejected"
)

// Status is the outcome of a round.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusRejected  Status = "rejected"
)

// Reason explains a rejected round.
type Reason string

const (
	ReasonCancelled             Reason = "cancelled"
	ReasonInvalidPatch          Reason = "invalid_patch"
	ReasonSuggestionUnavailable Reason = "suggestion_unavailable"
	ReasonStorageFailed         Reason = "storage_failed"
)

// RoundResult is the structured outcome of one round. A rejected round
// never changes the session.
type RoundResult struct {
	RoundID     string             `json:"round_id"`
	SessionID   string             `json:"session_id"`
	Status      Status             `json:"status"`
	Reason      Reason             `json:"reason,omitempty"`
	Detail      string             `json:"detail,omitempty"`
	BaseVersion int                `json:"base_version"`
	Findings    []analysis.Finding `json:"findings"`
	Version     *version.Version   `json:"version,omitempty"`
	Stats       patch.DiffStats    `json:"stats"`
	Rationale   string             `json:"rationale,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// Committed reports whether the round produced a new version.
func (r RoundResult) Committed() bool {
	return r.Status == StatusCommitted
}

// Err returns the sentinel error matching a rejected round's reason, or nil
// for a committed round.
func (r RoundResult) Err() error {
	if r.Status != StatusRejected {
		return nil
	}
	switch r.Reason {
	case ReasonCancelled:
		return ErrCancelled
	case ReasonInvalidPatch:
		return ErrInvalidPatch
	case ReasonStorageFailed:
		return ErrStorage
	default:
		return ErrSuggestionUnavailable
	}
}
