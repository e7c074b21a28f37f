package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/testutil"
	"github.com/agentway/agentway/model"
	"github.com/agentway/agentway/retry"
	"github.com/agentway/agentway/tool"
)

func newInvoker(stub *model.StubModel) *retry.Invoker {
	return retry.NewInvoker(stub, retry.DefaultPolicy())
}

func TestModelAgent_FinalTextWithOutputKey(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueText("1. Intro 2. Body 3. Conclusion")

	a, err := NewModelAgent("outline", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Produce a short outline.")
		o.OutputKey = "blog_outline"
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, collector := testutil.NewRunContext(sess)

	sig, err := a.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, core.SignalContinue, sig)

	events := collector.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "1. Intro 2. Body 3. Conclusion", events[0].Text())
	assert.Equal(t, "1. Intro 2. Body 3. Conclusion", events[0].Actions.StateDelta["blog_outline"])

	v, ok := sess.GetState("blog_outline")
	require.True(t, ok)
	assert.Equal(t, "1. Intro 2. Body 3. Conclusion", v)
}

func TestModelAgent_StrictTemplateResolution(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueText("never reached")

	a, err := NewModelAgent("writer", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Expand this outline: {blog_outline}")
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, collector := testutil.NewRunContext(sess)

	_, err = a.Run(rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blog_outline")
	assert.Equal(t, 0, stub.CallCount(), "no model call on unresolved instruction")
	assert.Empty(t, collector.Events())
}

func TestModelAgent_TemplateSeesState(t *testing.T) {
	stub := model.NewStubModel() // exhausted script echoes instructions

	a, err := NewModelAgent("writer", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Write a post from this outline: {blog_outline}")
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").State("blog_outline", "1. Go 2. Concurrency").Build()
	rc, collector := testutil.NewRunContext(sess)

	_, err = a.Run(rc)
	require.NoError(t, err)

	texts := collector.Texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "Write a post from this outline: 1. Go 2. Concurrency", texts[0])
}

func TestModelAgent_ToolLoop(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueFunctionCall("fc-1", "get_weather", `{"city":"Berlin"}`)
	stub.QueueText("It is sunny in Berlin.")

	weather := tool.NewFunctionTool("get_weather", "Look up the weather", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []string{"city"},
	}, func(tc *core.ToolContext, args map[string]any) (any, error) {
		return map[string]any{"forecast": "sunny"}, nil
	})

	a, err := NewModelAgent("assistant", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{weather}
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, collector := testutil.NewRunContext(sess, func(o *testutil.RunContextOptions) {
		o.UserContent = core.NewTextContent("user", "Weather in Berlin?")
	})

	sig, err := a.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, core.SignalContinue, sig)

	events := collector.Events()
	require.Len(t, events, 3, "call event, response event, final text")
	require.Len(t, events[0].FunctionCalls(), 1)
	assert.Equal(t, "get_weather", events[0].FunctionCalls()[0].Name)
	assert.Equal(t, "It is sunny in Berlin.", events[2].Text())

	// second request carries the assistant call and the normalized result
	reqs := stub.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Contents, len(reqs[0].Contents)+2)

	// tool definitions advertised on every request
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "get_weather", reqs[0].Tools[0].Function.Name)
}

func TestModelAgent_ToolRoundCap(t *testing.T) {
	stub := model.NewStubModel()
	for i := 0; i < 4; i++ {
		stub.QueueFunctionCall("fc", "ping", `{}`)
	}

	ping := tool.NewFunctionTool("ping", "always pings", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{"pong": true}, nil
		})

	a, err := NewModelAgent("looper", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{ping}
		o.MaxToolRounds = 2
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess)

	_, err = a.Run(rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool rounds")
	assert.Equal(t, 3, stub.CallCount(), "cap reached after round limit")
}

func TestModelAgent_ToolStopRequest(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueFunctionCall("fc-1", "exit_loop", `{}`)
	stub.QueueText("never reached")

	exit := tool.NewFunctionTool("exit_loop", "ends the loop", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			tc.RequestStop()
			return map[string]any{}, nil
		})

	a, err := NewModelAgent("critic", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{exit}
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, collector := testutil.NewRunContext(sess)

	sig, err := a.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, core.SignalStop, sig)
	assert.Equal(t, 1, stub.CallCount(), "no further model call after a stop request")
	assert.Len(t, collector.Events(), 2)
}

func TestModelAgent_StopCondition(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueText("The draft is APPROVED.")

	a, err := NewModelAgent("reviewer", newInvoker(stub), func(o *ModelAgentOptions) {
		o.StopCondition = StopOnText("approved")
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess)

	sig, err := a.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, core.SignalStop, sig)
}

func TestModelAgent_DuplicateToolNames(t *testing.T) {
	noop := func(tc *core.ToolContext, args map[string]any) (any, error) { return nil, nil }
	_, err := NewModelAgent("dup", newInvoker(model.NewStubModel()), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{
			tool.NewFunctionTool("same", "a", nil, noop),
			tool.NewFunctionTool("same", "b", nil, noop),
		}
	})
	require.Error(t, err)
	var cfgErr *core.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestModelAgent_LimiterCapsCalls(t *testing.T) {
	stub := model.NewStubModel()
	stub.QueueFunctionCall("fc-1", "ping", `{}`)
	stub.QueueText("done")

	ping := tool.NewFunctionTool("ping", "pings", nil,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return map[string]any{}, nil
		})

	a, err := NewModelAgent("limited", newInvoker(stub), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{ping}
	})
	require.NoError(t, err)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess, func(o *testutil.RunContextOptions) {
		o.Limiter = core.NewModelLimiter(1)
	})

	_, err = a.Run(rc)
	require.Error(t, err, "second model call exceeds the limit")
	assert.Equal(t, 1, stub.CallCount())
}
