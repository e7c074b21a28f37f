package core

// Signal is the explicit control outcome of an agent turn. A fatal outcome is
// expressed as a non-nil error, not a Signal value.
type Signal int

const (
	// SignalContinue means the agent finished normally; enclosing composites
	// proceed as configured.
	SignalContinue Signal = iota

	// SignalStop requests that the enclosing composite stop early: a Loop
	// ends its iteration, a Sequential stops running later children.
	SignalStop
)

// String returns the signal name for logging.
func (s Signal) String() string {
	switch s {
	case SignalContinue:
		return "continue"
	case SignalStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Agent is a composable unit of work: it consumes the conversational context
// carried by a RunContext and produces events by emitting them through it.
//
// Definitions are immutable after construction and shared read-only across
// concurrent invocations; each Run call is a fresh execution with no
// per-object state. Implementations must respect context cancellation.
type Agent interface {
	// Name returns the unique agent name, used as event author.
	Name() string

	// Description returns a human-readable description of the agent's purpose.
	Description() string

	// Run executes one turn against the given context. Produced events are
	// emitted via rc.EmitEvent. A non-nil error aborts the turn (events
	// already emitted are preserved, matching append-only semantics).
	Run(rc *RunContext) (Signal, error)
}
