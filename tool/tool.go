// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments and a
// uniform result shape.
package tool

import (
	"fmt"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/util"
)

// Tool is a capability an agent can invoke by name with structured arguments.
//
// Implementations should provide descriptive names (snake_case recommended),
// a JSON schema for their arguments, and be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description provided to the model
	// so it can decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool. The ToolContext gives access to session state,
	// memory search, and flow control (RequestStop). The returned value must
	// be JSON-serializable; the dispatcher normalizes it into a result map.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError reports a tool argument that failed schema validation.
type ValidationError = util.ValidationError

// Error codes attached to ToolError by the built-in tools and the dispatcher.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeUnknown    = "UNKNOWN_TOOL"
)

// ToolError is the uniform error type surfaced by tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError with the given code.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
