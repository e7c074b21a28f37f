package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/testutil"
)

func TestLoopAgent_MaxIterations(t *testing.T) {
	count := 0
	child := newStepAgent("worker", func(rc *core.RunContext) { count++ })

	loop := NewLoopAgent("refine", child, func(o *LoopAgentOptions) {
		o.MaxIterations = 3
	})

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess)

	sig, err := loop.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, core.SignalContinue, sig, "cap reached is normal termination")
	assert.Equal(t, 3, count)
}

func TestLoopAgent_ConsumesStopSignal(t *testing.T) {
	count := 0
	child := newStepAgent("worker", func(rc *core.RunContext) { count++ })
	child.signal = core.SignalStop

	loop := NewLoopAgent("refine", child, func(o *LoopAgentOptions) {
		o.MaxIterations = 10
	})

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess)

	sig, err := loop.Run(rc)
	require.NoError(t, err)
	assert.Equal(t, core.SignalContinue, sig, "stop ends the loop, not the enclosing flow")
	assert.Equal(t, 1, count)
}

func TestLoopAgent_PropagatesChildError(t *testing.T) {
	child := newStepAgent("worker", nil)
	child.err = assert.AnError

	loop := NewLoopAgent("refine", child)

	sess := testutil.NewSessionBuilder("sess-1").Build()
	rc, _ := testutil.NewRunContext(sess)

	_, err := loop.Run(rc)
	require.ErrorIs(t, err, assert.AnError)
}
