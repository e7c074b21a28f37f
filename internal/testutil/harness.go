package testutil

import (
	"context"
	"sync"

	"github.com/agentway/agentway/core"
)

// EventCollector records emitted events in order. Safe for concurrent use so
// parallel agent tests can share one collector.
type EventCollector struct {
	mu     sync.Mutex
	events []core.Event
}

// Emit is a core.EmitFunc that appends to the collector.
func (c *EventCollector) Emit(ev core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// Events returns a copy of the collected events.
func (c *EventCollector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Texts returns the text of each collected event that carries any.
func (c *EventCollector) Texts() []string {
	var out []string
	for _, ev := range c.Events() {
		if t := ev.Text(); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// RunContextOptions holds overrides for NewRunContext.
type RunContextOptions struct {
	UserContent core.Content
	MemoryStore core.MemoryStore
	Limiter     *core.ModelLimiter
}

// NewRunContext builds a RunContext over the given session whose emitted
// events land in the returned collector. The collector also mirrors events
// into the session so multi-step agents observe their own history.
func NewRunContext(sess *core.Session, optFns ...func(o *RunContextOptions)) (*core.RunContext, *EventCollector) {
	opts := RunContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	collector := &EventCollector{}
	emit := func(ev core.Event) error {
		if err := collector.Emit(ev); err != nil {
			return err
		}
		sess.AddEvent(ev)
		if len(ev.Actions.StateDelta) > 0 {
			sess.MergeState(ev.Actions.StateDelta)
		}
		return nil
	}

	rc := core.NewRunContext(
		context.Background(),
		core.NewID(),
		opts.UserContent,
		sess,
		nil,
		opts.MemoryStore,
		opts.Limiter,
		emit,
		nil,
	)
	return rc, collector
}
