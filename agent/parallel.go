package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentway/agentway/core"
)

// BranchError aggregates the failures of a parallel run. All branches run to
// completion before it is returned.
type BranchError struct {
	// Failed lists the names of the children that returned an error,
	// in declaration order.
	Failed []string
	// Errors holds the corresponding child errors.
	Errors []error
}

// Error implements the error interface.
func (e *BranchError) Error() string {
	return fmt.Sprintf("parallel branches failed: %s", strings.Join(e.Failed, ", "))
}

// Unwrap exposes the child errors for errors.Is / errors.As.
func (e *BranchError) Unwrap() []error { return e.Errors }

// ParallelAgent runs its children concurrently, each on an isolated branch.
// Children share the session snapshot taken at launch but never observe each
// other's in-flight events: every branch emits into a private buffer, and the
// buffers are flushed to the parent context only after all branches finish.
// Buffers flush in branch completion order, ties broken by declaration
// order, keeping each branch's events contiguous in the session log.
type ParallelAgent struct {
	BaseAgent
	children []core.Agent
}

// NewParallelAgent creates a parallel coordinator over the given children.
func NewParallelAgent(name string, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
}

type branchResult struct {
	index  int
	name   string
	events []core.Event
	signal core.Signal
	err    error
	done   time.Time
}

// Run implements core.Agent.
func (p *ParallelAgent) Run(rc *core.RunContext) (core.Signal, error) {
	results := make([]branchResult, len(p.children))

	var wg sync.WaitGroup
	for i, child := range p.children {
		wg.Add(1)
		go func(idx int, c core.Agent) {
			defer wg.Done()

			res := branchResult{index: idx, name: c.Name()}
			branch := branchPath(rc.Branch, p.Name(), c.Name())
			var mu sync.Mutex
			childCtx := rc.Fork(branch, func(ev core.Event) error {
				mu.Lock()
				res.events = append(res.events, ev)
				mu.Unlock()
				return nil
			})

			res.signal, res.err = c.Run(childCtx)
			res.done = time.Now()
			results[idx] = res
		}(i, child)
	}
	wg.Wait()

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := results[order[a]], results[order[b]]
		if ra.done.Equal(rb.done) {
			return ra.index < rb.index
		}
		return ra.done.Before(rb.done)
	})

	// Flush successful branch buffers even when siblings failed, so partial
	// results survive in the session.
	for _, idx := range order {
		for _, ev := range results[idx].events {
			if err := rc.EmitEvent(ev); err != nil {
				return core.SignalContinue, err
			}
		}
	}

	branchErr := &BranchError{}
	stop := false
	for _, res := range results {
		if res.err != nil {
			branchErr.Failed = append(branchErr.Failed, res.name)
			branchErr.Errors = append(branchErr.Errors, fmt.Errorf("branch %s: %w", res.name, res.err))
		}
		if res.signal == core.SignalStop {
			stop = true
		}
	}
	if len(branchErr.Failed) > 0 {
		return core.SignalContinue, branchErr
	}
	if stop {
		return core.SignalStop, nil
	}
	return core.SignalContinue, nil
}

func branchPath(parent, coordinator, child string) string {
	suffix := coordinator + "." + child
	if parent == "" {
		return suffix
	}
	return parent + "." + suffix
}
