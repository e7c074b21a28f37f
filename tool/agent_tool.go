package tool

import (
	"strings"

	"github.com/agentway/agentway/core"
)

// AgentTool exposes a whole agent as a callable tool, letting an outer agent
// delegate a sub-task ("summarize this", "critique that") as a function call.
// The nested agent runs against the same session on a forked branch; its
// events are collected locally instead of being emitted into the parent turn,
// and its final text becomes the tool result.
type AgentTool struct {
	agent core.Agent
}

// NewAgentTool wraps the given agent as a tool named after the agent.
func NewAgentTool(agent core.Agent) *AgentTool {
	return &AgentTool{agent: agent}
}

// Name returns the wrapped agent's name.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description returns the wrapped agent's description.
func (t *AgentTool) Description() string { return t.agent.Description() }

// Parameters declares a single free-text request field.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"description": "The request to hand to the agent",
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the nested agent and returns its final text output.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	request, _ := args["request"].(string)

	var collected []core.Event
	branch := branchName(toolCtx.RunContext().Branch, t.agent.Name())
	sub := toolCtx.RunContext().Fork(branch, func(ev core.Event) error {
		collected = append(collected, ev)
		return nil
	})
	sub.UserContent = core.NewTextContent("user", request)

	if _, err := t.agent.Run(sub); err != nil {
		return nil, &ToolError{Tool: t.Name(), Message: err.Error(), Code: CodeExecution}
	}

	// Carry nested state writes back into the calling turn.
	for _, ev := range collected {
		for k, v := range ev.Actions.StateDelta {
			toolCtx.SetState(k, v)
		}
	}

	for i := len(collected) - 1; i >= 0; i-- {
		if text := collected[i].Text(); text != "" {
			return map[string]any{"result": text}, nil
		}
	}
	return map[string]any{"result": ""}, nil
}

func branchName(parent, child string) string {
	if parent == "" {
		return child
	}
	return strings.Join([]string{parent, child}, ".")
}
