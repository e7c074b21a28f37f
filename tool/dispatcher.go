package tool

import (
	"encoding/json"
	"fmt"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/model"
)

// Dispatcher routes model-issued function calls to registered tools. The
// registry is closed at construction: tools cannot be added or removed
// afterwards, so concurrent dispatch needs no locking.
//
// Every dispatch produces a result map with a "status" key. A successful call
// yields {"status": "success", ...}; a failed call yields
// {"status": "error", "error_message": ...}. Tool failures are data for the
// model to react to, never errors that abort the agent turn. The only hard
// error Dispatch returns is a call naming a tool that was never registered,
// which indicates a misconfigured agent rather than a runtime fault.
type Dispatcher struct {
	tools map[string]Tool
	order []string
}

// NewDispatcher builds a closed registry from the given tools. Duplicate tool
// names are a configuration error.
func NewDispatcher(tools ...Tool) (*Dispatcher, error) {
	d := &Dispatcher{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := t.Name()
		if _, exists := d.tools[name]; exists {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		d.tools[name] = t
		d.order = append(d.order, name)
	}
	return d, nil
}

// Len returns the number of registered tools.
func (d *Dispatcher) Len() int { return len(d.tools) }

// Get returns the named tool, if registered.
func (d *Dispatcher) Get(name string) (Tool, bool) {
	t, ok := d.tools[name]
	return t, ok
}

// Definitions returns the tool declarations to advertise to the model, in
// registration order.
func (d *Dispatcher) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		t := d.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Dispatch executes a single function call and returns the normalized result
// map. Arguments are decoded from the call's JSON payload; a decode failure
// is reported through the error map like any other tool failure.
func (d *Dispatcher) Dispatch(toolCtx *core.ToolContext, call core.FunctionCall) (map[string]any, error) {
	t, ok := d.tools[call.Name]
	if !ok {
		return nil, core.NewConfigurationError(toolCtx.AgentName(), "unknown tool %q", call.Name)
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			toolCtx.Logger().Warn("tool.call.bad_arguments", "tool", call.Name, "error", err.Error())
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}

	toolCtx.Logger().Debug("tool.call.start", "tool", call.Name, "fc_id", call.ID)

	result, err := t.Call(toolCtx, args)
	if err != nil {
		toolCtx.Logger().Warn("tool.call.error", "tool", call.Name, "fc_id", call.ID, "error", err.Error())
		return errorResult(err.Error()), nil
	}

	toolCtx.Logger().Debug("tool.call.success", "tool", call.Name, "fc_id", call.ID)
	return successResult(result), nil
}

// successResult normalizes a tool's return value. A map that already carries
// a "status" key is passed through so tools can shape their own envelope.
func successResult(result any) map[string]any {
	if m, ok := result.(map[string]any); ok {
		if _, has := m["status"]; has {
			return m
		}
		out := make(map[string]any, len(m)+1)
		for k, v := range m {
			out[k] = v
		}
		out["status"] = "success"
		return out
	}
	return map[string]any{"status": "success", "result": result}
}

func errorResult(msg string) map[string]any {
	return map[string]any{"status": "error", "error_message": msg}
}
