package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/testutil"
)

type scriptedAgent struct {
	name  string
	reply string
}

func (a *scriptedAgent) Name() string        { return a.name }
func (a *scriptedAgent) Description() string { return "replies with a fixed text" }

func (a *scriptedAgent) Run(rc *core.RunContext) (core.Signal, error) {
	rc.SetState("seen_request", rc.UserContent.Text())
	ev := core.NewMessageEvent(rc.InvocationID, a.name, a.reply)
	if err := rc.EmitEvent(ev); err != nil {
		return core.SignalContinue, err
	}
	return core.SignalContinue, nil
}

func TestAgentTool_RunsNestedAgent(t *testing.T) {
	nested := &scriptedAgent{name: "summarizer", reply: "short summary"}
	at := NewAgentTool(nested)

	assert.Equal(t, "summarizer", at.Name())

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, collector := testutil.NewRunContext(sess)
	tc := core.NewToolContext(rc, "outer", "fc-1")

	result, err := at.Call(tc, map[string]any{"request": "summarize the article"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": "short summary"}, result)

	// nested events stay out of the outer turn
	assert.Empty(t, collector.Events())

	// nested state writes flow back through the tool context
	v, ok := rc.StateDelta["seen_request"]
	require.True(t, ok)
	assert.Equal(t, "summarize the article", v)
}
