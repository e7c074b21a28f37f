package compaction

import (
	"context"
	"fmt"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/logging"
	"github.com/agentway/agentway/model"
	"github.com/agentway/agentway/retry"
)

// Compactor decides when the active window is due for compaction and
// produces the compaction record. It never mutates the session: the caller
// appends the returned event to the log.
type Compactor struct {
	config  Config
	invoker *retry.Invoker
	logger  logging.Logger
}

// CompactorOptions holds overrides passed to New.
type CompactorOptions struct {
	Logger logging.Logger
}

// New creates a Compactor summarizing through the given invoker.
func New(config Config, invoker *retry.Invoker, optFns ...func(o *CompactorOptions)) (*Compactor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if invoker == nil {
		return nil, fmt.Errorf("compaction requires a model invoker")
	}

	opts := CompactorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Compactor{config: config, invoker: invoker, logger: opts.Logger}, nil
}

// MaybeCompact inspects the session's active window and, when the turn count
// reaches the configured interval, summarizes the oldest turns. It returns
// the compaction record to append, or nil when nothing is due.
func (c *Compactor) MaybeCompact(ctx context.Context, sess *core.Session, invocationID string) (*core.Event, error) {
	window := activeWindow(sess)

	turns := turnOrder(window)
	if len(turns) < c.config.Interval {
		return nil, nil
	}

	toCompact := selectEvents(window, turns[:len(turns)-c.config.Overlap])
	if len(toCompact) == 0 {
		return nil, nil
	}

	summary, err := c.summarize(ctx, toCompact)
	if err != nil {
		return nil, fmt.Errorf("compaction: %w", err)
	}

	first, last := toCompact[0], toCompact[len(toCompact)-1]
	record := core.NewCompactionEvent(invocationID, summary, core.Compaction{
		StartID:   first.ID,
		EndID:     last.ID,
		StartTime: first.Timestamp,
		EndTime:   last.Timestamp,
	})

	c.logger.Info("compaction.performed",
		"session", sess.ID,
		"events", len(toCompact),
		"turns", len(turns)-c.config.Overlap,
	)
	return &record, nil
}

// activeWindow returns the session's active non-compaction events.
func activeWindow(sess *core.Session) []core.Event {
	var window []core.Event
	for _, ev := range sess.ActiveEvents() {
		if ev.IsCompaction() {
			continue
		}
		window = append(window, ev)
	}
	return window
}

// turnOrder lists the distinct invocation ids of the window in first-seen order.
func turnOrder(window []core.Event) []string {
	seen := map[string]bool{}
	var order []string
	for _, ev := range window {
		if ev.InvocationID == "" || seen[ev.InvocationID] {
			continue
		}
		seen[ev.InvocationID] = true
		order = append(order, ev.InvocationID)
	}
	return order
}

// selectEvents returns the window's events belonging to the given turns,
// preserving log order.
func selectEvents(window []core.Event, turns []string) []core.Event {
	include := map[string]bool{}
	for _, id := range turns {
		include[id] = true
	}
	var out []core.Event
	for _, ev := range window {
		if include[ev.InvocationID] {
			out = append(out, ev)
		}
	}
	return out
}

// summarize runs the summarization call over the selected events.
func (c *Compactor) summarize(ctx context.Context, events []core.Event) (string, error) {
	contents := make([]core.Content, 0, len(events))
	for _, ev := range events {
		if ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}
		role := "assistant"
		if ev.Content.Role == "user" {
			role = "user"
		}
		contents = append(contents, core.Content{Role: role, Parts: ev.Content.Parts})
	}

	resp, err := c.invoker.Invoke(ctx, model.Request{
		Instructions: c.config.prompt(),
		Contents:     contents,
	})
	if err != nil {
		return "", err
	}

	summary := resp.Content.Text()
	if summary == "" {
		return "", fmt.Errorf("model produced an empty summary")
	}
	return summary, nil
}
