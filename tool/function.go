package tool

import (
	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/util"
)

// FunctionTool adapts a plain Go function into a Tool. Arguments are
// validated against the declared schema before the function runs, and all
// failures surface as *ToolError with a consistent code:
//
//	VALIDATION_ERROR  schema / argument mismatch
//	EXECUTION_ERROR   the wrapped function returned a non-ToolError error
//
// A *ToolError returned by the function is forwarded unchanged. FunctionTool
// holds no mutable state after construction and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct via
// reflection, equivalent to util.SchemaFor(structType).
//
// Example:
//
//	type SumArgs struct {
//		A float64 `json:"a" description:"First addend"`
//		B float64 `json:"b" description:"Second addend"`
//	}
//
//	sum := NewFunctionToolFromStruct("calculate_sum", "Add two numbers", SumArgs{},
//		func(tc *core.ToolContext, args map[string]any) (any, error) {
//			return args["a"].(float64) + args["b"].(float64), nil
//		})
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.SchemaFor(structType), fn)
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema and invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if t.parameters != nil {
		if err := util.ValidateArguments(args, t.parameters); err != nil {
			return nil, &ToolError{
				Tool:    t.name,
				Message: err.Error(),
				Code:    CodeValidation,
				Details: args,
			}
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			return nil, toolErr
		}
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}
	return result, nil
}
