package agent

import (
	"fmt"

	"github.com/agentway/agentway/core"
)

// SequentialAgent executes child agents one after another against the shared
// run context, so each child sees the state and events its predecessors
// produced. The first child error aborts the remainder of the sequence;
// events already emitted stay emitted. A child signalling SignalStop skips
// the remaining children and propagates the signal to the enclosing flow.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a sequential coordinator over the given children,
// executed in the order specified.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
}

// Run implements core.Agent.
func (s *SequentialAgent) Run(rc *core.RunContext) (core.Signal, error) {
	for _, child := range s.children {
		sig, err := child.Run(rc)
		if err != nil {
			return core.SignalContinue, fmt.Errorf("sequential %s: agent %s: %w", s.Name(), child.Name(), err)
		}
		if sig == core.SignalStop {
			rc.Logger().Debug("agent.sequential.stop", "agent", s.Name(), "stopped_by", child.Name())
			return core.SignalStop, nil
		}
	}
	return core.SignalContinue, nil
}
