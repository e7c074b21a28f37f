package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agentway/agentway/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by agents.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Contents     []core.Content   `json:"contents"`     // Conversation turned into provider messages
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the complete output of one generation call. Function call
// requests, if any, appear as FunctionCallPart entries in Content.
type Response struct {
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "stub", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
// Implementations surface transient provider failures as *StatusError so the
// retry layer can classify them; any other error is treated as non-retryable.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// StatusError is a generation failure carrying the provider's numeric status
// code, used for retry classification.
type StatusError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("model error: status %d: %s", e.Code, e.Message)
}

// StatusCode extracts the numeric status code from err if it wraps a
// StatusError. The second return reports whether a code was found.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// StubModel is a scripted in-memory Model for tests. Outcomes are consumed
// in FIFO order; once the script is exhausted the stub echoes the request's
// resolved instructions, which lets pipeline tests verify exactly what
// prompt an agent produced.
type StubModel struct {
	mu       sync.Mutex
	script   []stubOutcome
	requests []Request
}

type stubOutcome struct {
	resp *Response
	err  error
}

// NewStubModel creates an empty stub; without scripted outcomes it echoes
// request instructions.
func NewStubModel() *StubModel { return &StubModel{} }

// QueueText scripts a successful single-text response.
func (m *StubModel) QueueText(text string) *StubModel {
	return m.queue(&Response{
		Content:      core.NewTextContent("assistant", text),
		FinishReason: "stop",
	}, nil)
}

// QueueFunctionCall scripts a response requesting one tool invocation.
func (m *StubModel) QueueFunctionCall(id, name, args string) *StubModel {
	return m.queue(&Response{
		Content: core.Content{
			Role: "assistant",
			Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID: id, Name: name, Arguments: args,
			}}},
		},
		FinishReason: "tool_calls",
	}, nil)
}

// QueueStatusError scripts a failure with the given provider status code.
func (m *StubModel) QueueStatusError(code int, msg string) *StubModel {
	return m.queue(nil, &StatusError{Code: code, Message: msg})
}

// QueueError scripts an arbitrary (non-status) failure.
func (m *StubModel) QueueError(err error) *StubModel { return m.queue(nil, err) }

func (m *StubModel) queue(resp *Response, err error) *StubModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, stubOutcome{resp: resp, err: err})
	return m
}

// Requests returns a copy of all requests seen so far.
func (m *StubModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many Generate calls the stub has served.
func (m *StubModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *StubModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	if len(m.script) == 0 {
		m.mu.Unlock()
		return &Response{
			Content:      core.NewTextContent("assistant", req.Instructions),
			FinishReason: "stop",
		}, nil
	}
	next := m.script[0]
	m.script = m.script[1:]
	m.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return next.resp, nil
}

// Info implements Model.
func (m *StubModel) Info() Info {
	return Info{Name: "stub", Provider: "stub", SupportsTools: true}
}
