package core

import (
	"context"

	"github.com/agentway/agentway/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by an agent. It exposes session state and memory search without granting
// direct access to the event log, and accumulates control signals (stop
// requests, state deltas) for the owning agent to apply.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentName      string
	stopRequested  bool
	stateDelta     map[string]any
}

// NewToolContext constructs a tool context bound to a parent RunContext and
// the function call id being executed.
func NewToolContext(runCtx *RunContext, agentName, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentName:      agentName,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// Logger returns the turn logger.
func (tc *ToolContext) Logger() logging.Logger { return tc.runCtx.Logger() }

// FunctionCallID returns the id correlating the model's request with this execution.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the agent executing the tool.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// SessionID returns the session id associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID() }

// GetState retrieves the state value for the given key.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.runCtx.GetState(k) }

// SetState stages a state mutation, recorded both on the turn's delta buffer
// and on this tool call's local delta for event attachment.
func (tc *ToolContext) SetState(k string, v any) {
	tc.runCtx.SetState(k, v)
	if tc.stateDelta == nil {
		tc.stateDelta = map[string]any{}
	}
	tc.stateDelta[k] = v
}

// RequestStop asks the owning agent to signal SignalStop for this turn.
// This is the designed way for a tool (e.g. an exit-loop tool) to end a Loop.
func (tc *ToolContext) RequestStop() { tc.stopRequested = true }

// StopRequested reports whether a tool asked to stop the enclosing flow.
func (tc *ToolContext) StopRequested() bool { return tc.stopRequested }

// SearchMemory performs a recall query scoped to the session's app and user.
func (tc *ToolContext) SearchMemory(query string, limit int) ([]MemoryResult, error) {
	return tc.runCtx.SearchMemory(query, limit)
}

// RunContext returns the underlying run context. Used by tools that execute
// nested agents synchronously.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }
