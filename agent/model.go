package agent

import (
	"fmt"
	"strings"

	"github.com/agentway/agentway/core"
	"github.com/agentway/agentway/internal/util"
	"github.com/agentway/agentway/model"
	"github.com/agentway/agentway/retry"
	"github.com/agentway/agentway/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Instruction is the system prompt. Static text may reference session
	// state via `{key}` placeholders, resolved strictly before each call.
	Instruction Instruction

	// Description overrides the generated agent description.
	Description string

	// OutputKey, when set, stores the agent's final text into session state
	// under this key via the emitted event's state delta.
	OutputKey string

	// Tools are the capabilities exposed to the model. The registry is
	// closed once the agent is built.
	Tools []tool.Tool

	// MaxToolRounds bounds the generate/dispatch loop within one turn.
	// Exceeding it is a hard error, not a graceful stop.
	MaxToolRounds int

	// StopCondition, when set, is evaluated against the final text; a true
	// result makes the agent signal SignalStop to its enclosing flow.
	StopCondition func(text string) bool
}

// ModelAgent is the leaf agent: it resolves its instruction against session
// state, assembles the compaction-aware history into a model request, and
// runs a bounded generate/dispatch loop until the model produces a plain
// text answer. All model traffic goes through a retry.Invoker.
type ModelAgent struct {
	BaseAgent
	invoker       *retry.Invoker
	instruction   Instruction
	dispatcher    *tool.Dispatcher
	outputKey     string
	maxToolRounds int
	stopCondition func(string) bool
}

// NewModelAgent creates a model-backed agent. Defaults: a generic assistant
// instruction, no tools, 10 tool rounds. Duplicate tool names are a
// configuration error.
func NewModelAgent(name string, invoker *retry.Invoker, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	opts := ModelAgentOptions{
		Instruction:   NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		MaxToolRounds: 10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	dispatcher, err := tool.NewDispatcher(opts.Tools...)
	if err != nil {
		return nil, core.NewConfigurationError(name, "%v", err)
	}

	a := &ModelAgent{
		BaseAgent:     NewBaseAgent(name),
		invoker:       invoker,
		instruction:   opts.Instruction,
		dispatcher:    dispatcher,
		outputKey:     opts.OutputKey,
		maxToolRounds: opts.MaxToolRounds,
		stopCondition: opts.StopCondition,
	}
	if opts.Description != "" {
		a.SetDescription(opts.Description)
	}
	return a, nil
}

// OutputKey returns the session state key for the agent's final text, if any.
func (a *ModelAgent) OutputKey() string { return a.outputKey }

// resolveInstructions produces the final system prompt: provider resolution,
// then strict `{key}` substitution against the session state view. A
// placeholder naming an absent key aborts the turn.
func (a *ModelAgent) resolveInstructions(rc *core.RunContext) (string, error) {
	text, err := a.instruction.Resolve(rc)
	if err != nil {
		return "", fmt.Errorf("agent %s: resolve instruction: %w", a.Name(), err)
	}
	rendered, err := util.RenderTemplate(text, rc.StateView())
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Name(), err)
	}
	if rc.Preamble != "" {
		rendered = rc.Preamble + "\n\n" + rendered
	}
	return rendered, nil
}

// buildContents turns the active history into model input, appending the
// turn's user content when the caller supplied one directly (nested agent
// calls do this; the runner persists the user event into history instead).
func (a *ModelAgent) buildContents(rc *core.RunContext) []core.Content {
	history := rc.ActiveHistory()
	contents := make([]core.Content, 0, len(history)+1)
	for _, ev := range history {
		if ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}
		contents = append(contents, *ev.Content)
	}
	if len(rc.UserContent.Parts) > 0 {
		contents = append(contents, rc.UserContent)
	}
	return contents
}

// Run implements core.Agent.
func (a *ModelAgent) Run(rc *core.RunContext) (core.Signal, error) {
	instructions, err := a.resolveInstructions(rc)
	if err != nil {
		return core.SignalContinue, err
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     a.buildContents(rc),
		Tools:        a.dispatcher.Definitions(),
	}

	rc.Logger().Debug("agent.run.start", "agent", a.Name(), "tools", a.dispatcher.Len())

	for round := 0; ; round++ {
		if rc.Limiter != nil {
			if err := rc.Limiter.Increment(); err != nil {
				return core.SignalContinue, fmt.Errorf("agent %s: %w", a.Name(), err)
			}
		}

		resp, err := a.invoker.Invoke(rc.Context, req)
		if err != nil {
			return core.SignalContinue, fmt.Errorf("agent %s: %w", a.Name(), err)
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			return a.finish(rc, resp)
		}

		if round >= a.maxToolRounds {
			return core.SignalContinue, fmt.Errorf(
				"agent %s: exceeded %d tool rounds without a final answer", a.Name(), a.maxToolRounds)
		}

		stop, responses, err := a.dispatchCalls(rc, resp, calls)
		if err != nil {
			return core.SignalContinue, err
		}

		req.Contents = append(req.Contents, resp.Content, responses)
		if stop {
			rc.Logger().Debug("agent.run.tool_stop", "agent", a.Name())
			return core.SignalStop, nil
		}
	}
}

// dispatchCalls emits the model's function call event, executes every call in
// declaration order, and emits the matching response event. The returned
// content carries the responses for the next model round.
func (a *ModelAgent) dispatchCalls(rc *core.RunContext, resp *model.Response, calls []core.FunctionCall) (bool, core.Content, error) {
	callEv := core.NewContentEvent(rc.InvocationID, a.Name(), resp.Content)
	if err := rc.EmitEvent(callEv); err != nil {
		return false, core.Content{}, err
	}

	stop := false
	responses := core.Content{Role: "tool"}

	for _, call := range calls {
		toolCtx := core.NewToolContext(rc, a.Name(), call.ID)

		result, err := a.dispatcher.Dispatch(toolCtx, call)
		if err != nil {
			return false, core.Content{}, err
		}
		if toolCtx.StopRequested() {
			stop = true
		}

		respEv := core.NewFunctionResponseEvent(rc.InvocationID, a.Name(), call.ID, call.Name, result)
		if err := rc.EmitEvent(respEv); err != nil {
			return false, core.Content{}, err
		}
		responses.Parts = append(responses.Parts, core.FunctionResponsePart{
			FunctionResponse: core.FunctionResponse{ID: call.ID, Name: call.Name, Response: result},
		})
	}

	return stop, responses, nil
}

// finish emits the final text event, attaching the output key delta, and
// evaluates the stop condition.
func (a *ModelAgent) finish(rc *core.RunContext, resp *model.Response) (core.Signal, error) {
	text := resp.Content.Text()

	if a.outputKey != "" {
		rc.SetState(a.outputKey, text)
	}

	ev := core.NewContentEvent(rc.InvocationID, a.Name(), resp.Content)
	if err := rc.EmitEvent(ev); err != nil {
		return core.SignalContinue, err
	}

	rc.Logger().Debug("agent.run.complete", "agent", a.Name(), "chars", len(text))

	if a.stopCondition != nil && a.stopCondition(text) {
		return core.SignalStop, nil
	}
	return core.SignalContinue, nil
}

// StopOnText returns a stop condition that triggers when the final text
// contains the given marker, matched case-insensitively.
func StopOnText(marker string) func(string) bool {
	marker = strings.ToLower(marker)
	return func(text string) bool {
		return strings.Contains(strings.ToLower(text), marker)
	}
}
