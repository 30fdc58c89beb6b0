package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeResult(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want ToolResult
	}{
		{"typed success", ToolResult{Success: true, Result: "ok"}, ToolResult{Success: true, Result: "ok"}},
		{"typed failure without error", ToolResult{}, ToolResult{Error: NoErrorDetail}},
		{"nil pointer", (*ToolResult)(nil), ToolResult{Error: "tool returned no result"}},
		{"nil", nil, ToolResult{Error: "tool returned no result"}},
		{"map success", map[string]any{"success": true, "result": 3}, ToolResult{Success: true, Result: 3}},
		{"map missing success", map[string]any{"result": "x"}, ToolResult{Result: "x", Error: NoErrorDetail}},
		{"map misspelled success", map[string]any{"succsess": true, "error": "e"}, ToolResult{Error: "e"}},
		{"map non-string error", map[string]any{"success": false, "error": 7}, ToolResult{Error: "7"}},
		{"map legacy stop", map[string]any{"success": true, "action": "stop_system"}, ToolResult{Success: true, Action: ActionStop}},
		{"string map", map[string]string{"success": "true", "result": "r"}, ToolResult{Success: true, Result: "r"}},
		{"wrong shape", 12, ToolResult{Error: "tool returned malformed result of type int"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeResult(tc.in))
		})
	}
}

func TestParseAction(t *testing.T) {
	assert.Equal(t, ActionNone, ParseAction(""))
	assert.Equal(t, ActionNone, ParseAction("none"))
	assert.Equal(t, ActionStop, ParseAction("STOP"))
	assert.Equal(t, ActionStop, ParseAction("stop_system"))
	assert.Equal(t, ActionSpeak, ParseAction("speak"))
	assert.Equal(t, Action("dance"), ParseAction("dance"))
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope("main.stop", ToolResult{Success: true, Result: "bye", Action: "stop_system"})
	assert.Equal(t, Envelope{Name: "main.stop", Success: true, Result: "bye", Action: ActionStop}, env)

	env = NewEnvelope("x", ToolResult{Success: false})
	assert.Equal(t, NoErrorDetail, env.Error)
}

func TestCommandRaw(t *testing.T) {
	assert.Equal(t, "{tool main.stop}", Command{Name: "main.stop"}.Raw())
	assert.Equal(t, `{tool main.speak text="hi"}`, Command{Name: "main.speak", Args: `text="hi"`}.Raw())
}

func TestRunStateActive(t *testing.T) {
	assert.True(t, StateRunning.Active())
	assert.True(t, StatePaused.Active())
	assert.False(t, StateStopped.Active())
	assert.False(t, StateIdle.Active())
}
