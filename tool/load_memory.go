package tool

import (
	"github.com/agentway/agentway/core"
)

// loadMemoryTool lets the model pull relevant fragments from long-term memory
// on demand. Pair it with an instruction telling the model when to call it.
type loadMemoryTool struct {
	limit int
}

// NewLoadMemoryTool constructs the load_memory tool. limit caps the number of
// returned fragments; values below 1 fall back to 5.
func NewLoadMemoryTool(limit int) Tool {
	if limit < 1 {
		limit = 5
	}
	return &loadMemoryTool{limit: limit}
}

func (t *loadMemoryTool) Name() string { return "load_memory" }

func (t *loadMemoryTool) Description() string {
	return "Search the user's long-term memory for information from past conversations. " +
		"Use when the user refers to something discussed before."
}

func (t *loadMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for in past conversations",
			},
		},
		"required": []string{"query"},
	}
}

func (t *loadMemoryTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, NewToolError(t.Name(), "field 'query' must be a non-empty string", CodeValidation)
	}

	results, err := tc.SearchMemory(query, t.limit)
	if err != nil {
		return nil, &ToolError{Tool: t.Name(), Message: err.Error(), Code: CodeExecution}
	}

	memories := make([]map[string]any, 0, len(results))
	for _, r := range results {
		memories = append(memories, map[string]any{
			"author": r.Fragment.Author,
			"text":   r.Fragment.Text,
		})
	}
	return map[string]any{"memories": memories}, nil
}
