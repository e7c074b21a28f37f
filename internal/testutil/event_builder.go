package testutil

import (
	"time"

	"github.com/agentway/agentway/core"
)

// EventBuilder constructs events for tests with fluent chaining.
// Example:
//
//	ev := NewEventBuilder().Author("writer").Invocation("inv-1").AssistantText("hi").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	id           string
	invocationID string
	author       string
	branch       string
	timestamp    time.Time
	role         string
	textParts    []string
	calls        []core.FunctionCall
	actions      core.EventActions
}

// NewEventBuilder creates a builder with default author "agent".
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{author: "agent"}
}

// ID overrides the auto-generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Invocation sets the invocation ID (chainable).
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// Author sets the author name (chainable).
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Branch sets the branch label (chainable).
func (b *EventBuilder) Branch(br string) *EventBuilder { b.branch = br; return b }

// At sets the event timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.timestamp = t; return b }

// UserText appends a user role text part (chainable).
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends an assistant role text part (chainable).
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = "assistant"
	b.textParts = append(b.textParts, t)
	return b
}

// FunctionCall appends a function call part (chainable).
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	b.role = "assistant"
	b.calls = append(b.calls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// StateDelta sets a state delta entry on the event actions (chainable).
func (b *EventBuilder) StateDelta(key string, val any) *EventBuilder {
	if b.actions.StateDelta == nil {
		b.actions.StateDelta = map[string]any{}
	}
	b.actions.StateDelta[key] = val
	return b
}

// Compaction marks the event as a compaction record (chainable).
func (b *EventBuilder) Compaction(c core.Compaction) *EventBuilder {
	b.actions.Compaction = &c
	return b
}

// Build materializes the event.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	if b.branch != "" {
		ev.Branch = b.branch
	}
	if !b.timestamp.IsZero() {
		ev.Timestamp = b.timestamp
	}

	if len(b.textParts) > 0 || len(b.calls) > 0 {
		content := core.Content{Role: b.role}
		for _, t := range b.textParts {
			content.Parts = append(content.Parts, core.TextPart{Text: t})
		}
		for _, fc := range b.calls {
			content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: fc})
		}
		ev.Content = &content
	}

	ev.Actions = b.actions
	return ev
}
