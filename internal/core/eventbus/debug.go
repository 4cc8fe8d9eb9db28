package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs bus activity: published events at debug level,
// drops as warnings and subscriber panics as errors. Events are tagged with
// the session they concern.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		logger.Debug().Str("event", string(event)).Str("session_id", SessionOf(payload)).Msg("event published")
	})

	bus.OnDrop(func(event Event, payload any) {
		logger.Warn().Str("event", string(event)).Str("session_id", SessionOf(payload)).Msg("event dropped, buffer full")
	})

	bus.OnPanic(func(event Event, payload any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("session_id", SessionOf(payload)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

// SessionOf returns the id of the session a payload concerns, or "".
func SessionOf(payload any) string {
	switch p := payload.(type) {
	case SessionStartedPayload:
		if p.Session != nil {
			return p.Session.ID
		}
	case SessionClosedPayload:
		return p.SessionID
	case SessionRolledBackPayload:
		return p.SessionID
	case RoundStartedPayload:
		return p.SessionID
	case RoundCommittedPayload:
		return p.Result.SessionID
	case RoundRejectedPayload:
		return p.Result.SessionID
	}
	return ""
}
