package core

import (
	"time"

	"github.com/google/uuid"
)

// Compaction marks an event as a summary standing in for the contiguous
// range of prior events [StartID .. EndID]. The summarized events stay in the
// underlying log for audit but are excluded from read paths (see
// Session.ActiveEvents).
type Compaction struct {
	StartID   string    `json:"start_id"` // First superseded event id
	EndID     string    `json:"end_id"`   // Last superseded event id
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// EventActions encodes side-effects or orchestration signals attached to an
// Event. All fields are optional so absence can be distinguished from zero
// values. The runner interprets them after the event is emitted.
type EventActions struct {
	StateDelta map[string]any `json:"state_delta,omitempty"`
	Compaction *Compaction    `json:"compaction,omitempty"`
	Escalate   *bool          `json:"escalate,omitempty"`
}

// Event is the sole unit of conversational history. After emission it is
// immutable. Ordering within a session is the total order of appends.
//
// It captures:
//   - Correlation (InvocationID, ID, Author, Branch)
//   - Conversational content (optional role-based Parts)
//   - Orchestration directives (Actions)
//   - High precision UTC timestamp
//
// Content may be nil for control-only events.
type Event struct {
	ID           string       `json:"id"`
	InvocationID string       `json:"invocation_id"`
	Author       string       `json:"author"` // "user", agent name, or "system"
	Branch       string       `json:"branch,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	Actions      EventActions `json:"actions"`
}

// NewID returns a fresh globally unique identifier.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event authored by author bound to an invocation.
// Prefer the helper constructors for common semantic categories.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewUserEvent creates a user-authored event carrying the given content.
func NewUserEvent(invocationID string, content Content) Event {
	e := NewEvent(invocationID, "user")
	content.Role = "user"
	e.Content = &content
	return e
}

// NewMessageEvent creates an assistant-style message event with a single text part.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	c := NewTextContent("assistant", message)
	e.Content = &c
	return e
}

// NewContentEvent creates an event carrying arbitrary assistant content.
func NewContentEvent(invocationID, author string, content Content) Event {
	e := NewEvent(invocationID, author)
	e.Content = &content
	return e
}

// NewFunctionResponseEvent records the normalized outcome of a tool call.
// The response map carries a "status" field; see tool.Dispatcher.
func NewFunctionResponseEvent(invocationID, author, callID, name string, response map[string]any) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{
		Role: "tool",
		Parts: []Part{FunctionResponsePart{FunctionResponse: FunctionResponse{
			ID:       callID,
			Name:     name,
			Response: response,
		}}},
	}
	return e
}

// NewCompactionEvent creates a system-authored summary event superseding the
// event range [startID .. endID].
func NewCompactionEvent(invocationID, summary string, compaction Compaction) Event {
	e := NewEvent(invocationID, "system")
	c := NewTextContent("assistant", summary)
	e.Content = &c
	e.Actions.Compaction = &compaction
	return e
}

// IsCompaction reports whether the event is a compaction summary record.
func (e Event) IsCompaction() bool { return e.Actions.Compaction != nil }

// Text returns the concatenated text parts of the event content, or "".
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}
	return e.Content.Text()
}

// FunctionCalls returns function call parts of the event content.
func (e Event) FunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionCalls()
}

// IsToolActivity reports whether the event is pure function call / response
// plumbing (no conversational text).
func (e Event) IsToolActivity() bool {
	if e.Content == nil {
		return false
	}
	hasFn := false
	for _, p := range e.Content.Parts {
		switch p.(type) {
		case FunctionCallPart, FunctionResponsePart:
			hasFn = true
		case TextPart:
			if p.(TextPart).Text != "" {
				return false
			}
		}
	}
	return hasFn
}
