package core

import (
	"errors"
	"fmt"
)

// Session store sentinels. Callers are expected to recover from these, e.g.
// falling back to Get after Create reports ErrSessionExists.
var (
	// ErrSessionNotFound is returned by Get for an unknown session key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned by Create when the key is already taken.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionBusy is returned when a second turn is started on a session
	// that already has an in-flight turn. Sessions have single-writer
	// discipline; the runner fails fast rather than queueing.
	ErrSessionBusy = errors.New("session busy: turn already in flight")
)

// ConfigurationError indicates an invalid agent configuration discovered at
// run time: an unresolved instruction template variable or an unresolvable
// tool binding. It is fatal for the current turn and never retried.
type ConfigurationError struct {
	Agent  string // Agent whose configuration is broken
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Agent == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in agent %s: %s", e.Agent, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for the given agent.
func NewConfigurationError(agent, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Agent: agent, Reason: fmt.Sprintf(format, args...)}
}
