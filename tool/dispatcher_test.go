package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/testutil"
)

func newToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess)
	return core.NewToolContext(rc, "tester", "fc-1")
}

func echoTool(name string) Tool {
	return NewFunctionTool(name, "echoes its input", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(tc *core.ToolContext, args map[string]any) (any, error) {
		return args["text"], nil
	})
}

func TestNewDispatcher_RejectsDuplicateNames(t *testing.T) {
	_, err := NewDispatcher(echoTool("echo"), echoTool("echo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool name")
}

func TestDispatcher_Definitions(t *testing.T) {
	d, err := NewDispatcher(echoTool("alpha"), echoTool("beta"))
	require.NoError(t, err)

	defs := d.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "beta", defs[1].Function.Name)
	assert.Equal(t, "function", defs[0].Type)
}

func TestDispatch_Success(t *testing.T) {
	d, err := NewDispatcher(echoTool("echo"))
	require.NoError(t, err)

	result, err := d.Dispatch(newToolContext(t), core.FunctionCall{
		ID:        "fc-1",
		Name:      "echo",
		Arguments: `{"text":"hello"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "hello", result["result"])
}

func TestDispatch_PreservesStatusEnvelope(t *testing.T) {
	custom := NewFunctionTool("lookup", "returns its own envelope", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{"status": "error", "error_message": "not found"}, nil
		})
	d, err := NewDispatcher(custom)
	require.NoError(t, err)

	result, err := d.Dispatch(newToolContext(t), core.FunctionCall{Name: "lookup"})
	require.NoError(t, err)
	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "not found", result["error_message"])
}

func TestDispatch_ToolFailureBecomesErrorMap(t *testing.T) {
	failing := NewFunctionTool("boom", "always fails", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})
	d, err := NewDispatcher(failing)
	require.NoError(t, err)

	result, err := d.Dispatch(newToolContext(t), core.FunctionCall{Name: "boom"})
	require.NoError(t, err, "tool failures are data, not dispatch errors")
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "backend down")
}

func TestDispatch_UnknownToolIsConfigurationError(t *testing.T) {
	d, err := NewDispatcher(echoTool("echo"))
	require.NoError(t, err)

	_, err = d.Dispatch(newToolContext(t), core.FunctionCall{Name: "nope"})
	require.Error(t, err)

	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestDispatch_BadArgumentJSON(t *testing.T) {
	d, err := NewDispatcher(echoTool("echo"))
	require.NoError(t, err)

	result, err := d.Dispatch(newToolContext(t), core.FunctionCall{
		Name:      "echo",
		Arguments: `{not json`,
	})
	require.NoError(t, err)
	assert.Equal(t, "error", result["status"])
}

func TestFunctionTool_ValidationFailure(t *testing.T) {
	d, err := NewDispatcher(echoTool("echo"))
	require.NoError(t, err)

	result, err := d.Dispatch(newToolContext(t), core.FunctionCall{
		Name:      "echo",
		Arguments: `{}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "error", result["status"])
	assert.Contains(t, result["error_message"], "required field is missing")
}

func TestFunctionTool_PassesThroughToolError(t *testing.T) {
	custom := NewFunctionTool("quota", "reports quota errors", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, NewToolError("quota", "limit reached", "QUOTA_EXCEEDED")
		})

	_, err := custom.Call(newToolContext(t), map[string]any{})
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "QUOTA_EXCEEDED", toolErr.Code)
}

func TestFunctionTool_StopRequestPropagates(t *testing.T) {
	stopper := NewFunctionTool("exit_loop", "stops the loop", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.RequestStop()
			return map[string]any{}, nil
		})

	tc := newToolContext(t)
	_, err := stopper.Call(tc, map[string]any{})
	require.NoError(t, err)
	assert.True(t, tc.StopRequested())
}
