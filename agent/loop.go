package agent

import (
	"fmt"

	"github.com/agentway/agentway/core"
)

// LoopAgentOptions configures a LoopAgent instance.
type LoopAgentOptions struct {
	// MaxIterations bounds the loop. Reaching it is normal termination,
	// not an error.
	MaxIterations int
}

// LoopAgent executes a single child agent repeatedly until the child signals
// SignalStop or the iteration cap is reached. The stop signal is consumed
// here: the loop itself returns SignalContinue so an enclosing sequence
// proceeds normally after the loop ends.
type LoopAgent struct {
	BaseAgent
	child         core.Agent
	maxIterations int
}

// NewLoopAgent constructs a looping coordinator around a child agent.
// Default cap is 10 iterations.
func NewLoopAgent(name string, child core.Agent, optFns ...func(o *LoopAgentOptions)) *LoopAgent {
	opts := LoopAgentOptions{MaxIterations: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LoopAgent{
		BaseAgent:     NewBaseAgent(name),
		child:         child,
		maxIterations: opts.MaxIterations,
	}
}

// Run implements core.Agent.
func (l *LoopAgent) Run(rc *core.RunContext) (core.Signal, error) {
	for i := 0; i < l.maxIterations; i++ {
		if err := rc.Err(); err != nil {
			return core.SignalContinue, err
		}

		sig, err := l.child.Run(rc)
		if err != nil {
			return core.SignalContinue, fmt.Errorf("loop %s: iteration %d: %w", l.Name(), i+1, err)
		}
		if sig == core.SignalStop {
			rc.Logger().Debug("agent.loop.stop", "agent", l.Name(), "iteration", i+1)
			return core.SignalContinue, nil
		}
	}
	rc.Logger().Debug("agent.loop.max_iterations", "agent", l.Name(), "iterations", l.maxIterations)
	return core.SignalContinue, nil
}
