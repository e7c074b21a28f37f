package testutil

import (
	"github.com/agentway/agentway/core"
)

// SessionBuilder constructs sessions for tests with fluent chaining.
// Example:
//
//	sess := NewSessionBuilder("sess-1").State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	appName string
	userID  string
	id      string
	state   map[string]any
	events  []core.Event
}

// NewSessionBuilder creates a builder for a session with the given id and
// default app/user identifiers.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{appName: "test-app", userID: "user-1", id: id, state: map[string]any{}}
}

// App sets the application name (chainable).
func (b *SessionBuilder) App(app string) *SessionBuilder { b.appName = app; return b }

// User sets the user identifier (chainable).
func (b *SessionBuilder) User(user string) *SessionBuilder { b.userID = user; return b }

// State sets a state key/value pair (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Event appends a single event (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with the configured state and history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.appName, b.userID, b.id)
	for k, v := range b.state {
		s.State[k] = v
	}
	s.Events = append(s.Events, b.events...)
	return s
}
