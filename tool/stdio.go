package tool

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/agentway/agentway/core"
)

// StdioProcess manages a tool-serving subprocess speaking newline-delimited
// JSON over stdin/stdout. Each request is a single line:
//
//	{"tool_name": "...", "args": {...}}
//
// and each response line carries the usual status envelope:
//
//	{"status": "success", "result": ...}
//	{"status": "error", "error_message": "..."}
//
// Requests are serialized through a mutex since the protocol has no call IDs.
type StdioProcess struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// StartStdioProcess launches the subprocess and wires its pipes.
func StartStdioProcess(command string, args ...string) (*StdioProcess, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	return &StdioProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// Close shuts down stdin and waits for the subprocess to exit.
func (p *StdioProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.stdin.Close(); err != nil {
		_ = p.cmd.Process.Kill()
		return p.cmd.Wait()
	}
	return p.cmd.Wait()
}

// roundTrip writes one request line and reads one response line.
func (p *StdioProcess) roundTrip(toolName string, args map[string]any) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, err := sjson.Set("", "tool_name", toolName)
	if err != nil {
		return nil, err
	}
	if req, err = sjson.Set(req, "args", args); err != nil {
		return nil, err
	}

	if _, err := fmt.Fprintln(p.stdin, req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	parsed := gjson.ParseBytes(line)
	switch parsed.Get("status").String() {
	case "success":
		result := map[string]any{"status": "success"}
		raw := parsed.Get("result")
		if raw.Exists() {
			var v any
			if err := json.Unmarshal([]byte(raw.Raw), &v); err != nil {
				return nil, fmt.Errorf("decode result: %w", err)
			}
			result["result"] = v
		}
		return result, nil
	case "error":
		return nil, fmt.Errorf("%s", parsed.Get("error_message").String())
	default:
		return nil, fmt.Errorf("malformed response: %s", line)
	}
}

// StdioTool exposes one named capability of a StdioProcess as a Tool. Several
// StdioTools may share the same process.
type StdioTool struct {
	proc        *StdioProcess
	name        string
	description string
	parameters  map[string]any
}

// NewStdioTool binds a tool name on the given process.
func NewStdioTool(proc *StdioProcess, name, description string, parameters map[string]any) *StdioTool {
	return &StdioTool{proc: proc, name: name, description: description, parameters: parameters}
}

// Name returns the tool name sent as tool_name on the wire.
func (t *StdioTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *StdioTool) Description() string { return t.description }

// Parameters returns the declared argument schema.
func (t *StdioTool) Parameters() map[string]any { return t.parameters }

// Call forwards the arguments to the subprocess and returns its result.
func (t *StdioTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	result, err := t.proc.roundTrip(t.name, args)
	if err != nil {
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}
	return result, nil
}
