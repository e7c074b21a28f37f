package core

import (
	"context"
	"maps"

	"github.com/agentway/agentway/logging"
)

// EmitFunc receives events produced during a turn. The runner's emit appends
// to the session store and applies state deltas; composite agents install
// collecting emits to buffer branch output before merging.
type EmitFunc func(Event) error

// RunContext carries the execution scope of one turn through the agent tree.
// It aggregates:
//   - The ambient cancellation Context (the caller's turn budget)
//   - Session identity and a working Session snapshot
//   - Input user Content plus an optional memory preamble
//   - The emit sink for produced events
//   - Backing services (session store, memory store) and the shared limiter
//   - Branch label for parallel flows
//
// State mutations staged via SetState accumulate in StateDelta until the next
// EmitEvent attaches them to an event's actions. Forked contexts get isolated
// delta buffers while sharing services and the limiter.
type RunContext struct {
	Context      context.Context
	InvocationID string
	UserContent  Content
	Preamble     string // Recalled memory text injected ahead of instructions
	Branch       string
	Session      *Session
	StateDelta   map[string]any
	SessionStore SessionStore
	MemoryStore  MemoryStore
	Limiter      *ModelLimiter

	emit   EmitFunc
	logger logging.Logger
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	invocationID string,
	userContent Content,
	sess *Session,
	sessionStore SessionStore,
	memoryStore MemoryStore,
	limiter *ModelLimiter,
	emit EmitFunc,
	logger logging.Logger,
) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RunContext{
		Context:      ctx,
		InvocationID: invocationID,
		UserContent:  userContent,
		Session:      sess,
		StateDelta:   map[string]any{},
		SessionStore: sessionStore,
		MemoryStore:  memoryStore,
		Limiter:      limiter,
		emit:         emit,
		logger:       logger,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Logger returns the turn logger.
func (rc *RunContext) Logger() logging.Logger { return rc.logger }

// AppName returns the session's application name.
func (rc *RunContext) AppName() string { return rc.Session.AppName }

// UserID returns the session's user id.
func (rc *RunContext) UserID() string { return rc.Session.UserID }

// SessionID returns the session id.
func (rc *RunContext) SessionID() string { return rc.Session.ID }

// GetState returns a staged (delta) value if present, else the session value.
// Values written by earlier agents in the same turn are visible here as soon
// as their events have been emitted and applied.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}
	return rc.Session.GetState(k)
}

// StateView merges the session state with the staged delta into one map for
// template resolution. Staged values win.
func (rc *RunContext) StateView() map[string]any {
	view := rc.Session.StateSnapshot()
	maps.Copy(view, rc.StateDelta)
	return view
}

// SetState stages a state mutation; it is attached to the next emitted event
// as a state delta action.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// EmitEvent stamps the event with the invocation id and branch, merges the
// staged state delta into its actions, and hands it to the emit sink. The
// delta buffer is cleared on success.
func (rc *RunContext) EmitEvent(ev Event) error {
	if ev.InvocationID == "" {
		ev.InvocationID = rc.InvocationID
	}
	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	default:
	}

	if err := rc.emit(ev); err != nil {
		return err
	}

	rc.StateDelta = map[string]any{}
	return nil
}

// SearchMemory queries the MemoryStore scoped to this session's app and user.
func (rc *RunContext) SearchMemory(query string, limit int) ([]MemoryResult, error) {
	if rc.MemoryStore == nil {
		return nil, nil
	}
	return rc.MemoryStore.Search(rc.Context, rc.AppName(), rc.UserID(), query, limit)
}

// ActiveHistory returns the compaction-aware event view for prompt assembly.
func (rc *RunContext) ActiveHistory() []Event {
	return rc.Session.ActiveEvents()
}

// Fork derives an isolated child context for a branch: fresh delta buffer,
// private emit sink, shared services and limiter. The branch label replaces
// the parent's when non-empty.
func (rc *RunContext) Fork(branch string, emit EmitFunc) *RunContext {
	child := &RunContext{
		Context:      rc.Context,
		InvocationID: rc.InvocationID,
		UserContent:  rc.UserContent,
		Preamble:     rc.Preamble,
		Branch:       rc.Branch,
		Session:      rc.Session,
		StateDelta:   map[string]any{},
		SessionStore: rc.SessionStore,
		MemoryStore:  rc.MemoryStore,
		Limiter:      rc.Limiter,
		emit:         emit,
		logger:       rc.logger,
	}
	if branch != "" {
		child.Branch = branch
	}
	maps.Copy(child.StateDelta, rc.StateDelta)
	return child
}
