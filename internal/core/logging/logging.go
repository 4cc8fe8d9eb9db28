// Package logging holds the zerolog plumbing shared by every component:
// the global logger setup and the hook that stamps round fields.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Install makes base the global logger, extended with ContextHook.
// Loggers created by Component afterwards inherit both.
func Install(base zerolog.Logger) {
	log.Logger = base.Hook(ContextHook{})
}

// Component returns a child of the global logger tagged cmp=name.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}

// ContextHook copies the round attached to an event's context onto the event.
type ContextHook struct{}

// Run implements zerolog.Hook.
func (ContextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	r, ok := RoundFrom(e.GetCtx())
	if !ok {
		return
	}

	if r.SessionID != "" {
		e.Str("session_id", r.SessionID)
	}
	if r.RoundID != "" {
		e.Str("round_id", r.RoundID)
	}
	if r.BaseVersion > 0 {
		e.Int("base_version", r.BaseVersion)
	}
}
