// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within refine.
package eventbus

import (
	"github.com/colonyops/refine/internal/core/session"
)

// Events defines all event types and their payload structs.
var Events = map[string]any{
	// Keep list sorted A-Z
	"round.committed":     RoundCommittedPayload{},
	"round.rejected":      RoundRejectedPayload{},
	"round.started":       RoundStartedPayload{},
	"session.closed":      SessionClosedPayload{},
	"session.rolled-back": SessionRolledBackPayload{},
	"session.started":     SessionStartedPayload{},
}

const (
	EventRoundCommitted    Event = "round.committed"
	EventRoundRejected     Event = "round.rejected"
	EventRoundStarted      Event = "round.started"
	EventSessionClosed     Event = "session.closed"
	EventSessionRolledBack Event = "session.rolled-back"
	EventSessionStarted    Event = "session.started"
)

// SessionStartedPayload is emitted when a new session is created.
type SessionStartedPayload struct {
	Session *session.Session
}

// SessionClosedPayload is emitted when a session is torn down.
type SessionClosedPayload struct {
	SessionID string
}

// SessionRolledBackPayload is emitted when the current version pointer is
// moved to an existing version.
type SessionRolledBackPayload struct {
	SessionID string
	From      int
	To        int
}

// RoundStartedPayload is emitted when a round leaves idle.
type RoundStartedPayload struct {
	SessionID   string
	RoundID     string
	BaseVersion int
	Goal        string
}

// RoundCommittedPayload is emitted when a round produced a new version.
type RoundCommittedPayload struct {
	Result session.RoundResult
}

// RoundRejectedPayload is emitted when a round ended without a change.
type RoundRejectedPayload struct {
	Result session.RoundResult
}

func (bus *EventBus) PublishSessionStarted(p SessionStartedPayload) {
	bus.send(EventSessionStarted, p)
}

func (bus *EventBus) SubscribeSessionStarted(fn func(SessionStartedPayload)) {
	bus.subscribe(EventSessionStarted, func(p any) { fn(p.(SessionStartedPayload)) })
}

func (bus *EventBus) PublishSessionClosed(p SessionClosedPayload) {
	bus.send(EventSessionClosed, p)
}

func (bus *EventBus) SubscribeSessionClosed(fn func(SessionClosedPayload)) {
	bus.subscribe(EventSessionClosed, func(p any) { fn(p.(SessionClosedPayload)) })
}

func (bus *EventBus) PublishSessionRolledBack(p SessionRolledBackPayload) {
	bus.send(EventSessionRolledBack, p)
}

func (bus *EventBus) SubscribeSessionRolledBack(fn func(SessionRolledBackPayload)) {
	bus.subscribe(EventSessionRolledBack, func(p any) { fn(p.(SessionRolledBackPayload)) })
}

func (bus *EventBus) PublishRoundStarted(p RoundStartedPayload) {
	bus.send(EventRoundStarted, p)
}

func (bus *EventBus) SubscribeRoundStarted(fn func(RoundStartedPayload)) {
	bus.subscribe(EventRoundStarted, func(p any) { fn(p.(RoundStartedPayload)) })
}

func (bus *EventBus) PublishRoundCommitted(p RoundCommittedPayload) {
	bus.send(EventRoundCommitted, p)
}

func (bus *EventBus) SubscribeRoundCommitted(fn func(RoundCommittedPayload)) {
	bus.subscribe(EventRoundCommitted, func(p any) { fn(p.(RoundCommittedPayload)) })
}

func (bus *EventBus) PublishRoundRejected(p RoundRejectedPayload) {
	bus.send(EventRoundRejected, p)
}

func (bus *EventBus) SubscribeRoundRejected(fn func(RoundRejectedPayload)) {
	bus.subscribe(EventRoundRejected, func(p any) { fn(p.(RoundRejectedPayload)) })
}
