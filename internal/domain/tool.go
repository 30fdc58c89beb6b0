package domain

import (
	"context"
	"fmt"
	"strings"
)

// Action is an out-of-band signal a tool attaches to its result.
type Action string

const (
	ActionNone  Action = ""
	ActionStop  Action = "stop"
	ActionSpeak Action = "speak"
)

// NoErrorDetail is used when a tool fails without saying why.
const NoErrorDetail = "tool reported failure without an error message"

// ParseAction maps the spellings tools use onto an Action. Unknown values are
// kept verbatim so they can be logged, but the loop ignores them.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ActionNone
	case "stop", "stop_system":
		return ActionStop
	case "speak":
		return ActionSpeak
	default:
		return Action(s)
	}
}

// ToolResult is the canonical outcome of a tool execution.
type ToolResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Action  Action `json:"action,omitempty"`
}

// OK builds a successful result.
func OK(result any) ToolResult {
	return ToolResult{Success: true, Result: result}
}

// Fail builds a failed result with a formatted error message.
func Fail(format string, args ...any) ToolResult {
	return ToolResult{Error: fmt.Sprintf(format, args...)}
}

// ToolMetadata is the descriptor document shipped with every tool unit.
type ToolMetadata struct {
	Description   string   `yaml:"description" json:"description"`
	Parameters    any      `yaml:"parameters" json:"parameters,omitempty"`
	UsageExamples []string `yaml:"usage_examples" json:"usage_examples,omitempty"`
	Developer     string   `yaml:"developer" json:"developer,omitempty"`
	Project       string   `yaml:"project" json:"project,omitempty"`
}

// Handler executes a tool against its raw args string. The returned value is
// normalized with NormalizeResult, so loosely shaped maps are accepted.
type Handler interface {
	Execute(ctx context.Context, args string) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, args string) (any, error)

func (f HandlerFunc) Execute(ctx context.Context, args string) (any, error) {
	return f(ctx, args)
}

// NormalizeResult converts whatever a handler returned into a ToolResult.
// A missing or non-boolean "success" key counts as failure, and a failure
// always carries an error message.
func NormalizeResult(v any) ToolResult {
	var r ToolResult
	switch t := v.(type) {
	case ToolResult:
		r = t
	case *ToolResult:
		if t == nil {
			return ToolResult{Error: "tool returned no result"}
		}
		r = *t
	case map[string]any:
		r = fromMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = val
		}
		r = fromMap(m)
	case nil:
		return ToolResult{Error: "tool returned no result"}
	default:
		return ToolResult{Error: fmt.Sprintf("tool returned malformed result of type %T", v)}
	}
	r.Action = ParseAction(string(r.Action))
	if !r.Success && r.Error == "" {
		r.Error = NoErrorDetail
	}
	return r
}

func fromMap(m map[string]any) ToolResult {
	var r ToolResult
	switch s := m["success"].(type) {
	case bool:
		r.Success = s
	case string:
		r.Success = strings.EqualFold(s, "true")
	}
	r.Result = m["result"]
	if e, ok := m["error"]; ok && e != nil {
		if s, ok := e.(string); ok {
			r.Error = s
		} else {
			r.Error = fmt.Sprint(e)
		}
	}
	if a, ok := m["action"].(string); ok {
		r.Action = Action(a)
	}
	return r
}

// Envelope is the uniform dispatch output the loop and channels consume.
type Envelope struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Action  Action `json:"action,omitempty"`
}

// NewEnvelope wraps a normalized result under the command name.
func NewEnvelope(name string, r ToolResult) Envelope {
	r = NormalizeResult(r)
	return Envelope{Name: name, Success: r.Success, Result: r.Result, Error: r.Error, Action: r.Action}
}
