package agent

import (
	"context"
	"testing"

	"zenai/internal/domain"
	"zenai/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicTools struct{}

func (panicTools) Execute(context.Context, string, string) domain.ToolResult { panic("kaboom") }

func TestDispatcher_RecordsEnvelopeAndAudit(t *testing.T) {
	journal := &memJournal{}
	m := metrics.New("test")
	d := NewDispatcher(&fakeTools{}, journal, m, testLogger())

	env := d.Dispatch(context.Background(), "s1", 4, domain.Command{Name: "dev.echo", Args: "x=1"})
	assert.Equal(t, domain.Envelope{Name: "dev.echo", Success: true, Result: "echo:x=1"}, env)

	require.Len(t, journal.entries, 1)
	e := journal.entries[0]
	assert.Equal(t, "s1", e.Session)
	assert.Equal(t, 4, e.Turn)
	assert.Equal(t, "x=1", e.Args)
	assert.True(t, e.Success)
	assert.Contains(t, m.Render(), `test_tool_dispatch_total{tool="dev.echo",status="ok"} 1`)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d := NewDispatcher(&fakeTools{}, nil, nil, testLogger())
	env := d.Dispatch(context.Background(), "s", 1, domain.Command{Name: "no.such"})
	assert.False(t, env.Success)
	assert.Equal(t, "tool 'no.such' not found", env.Error)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher(panicTools{}, nil, nil, testLogger())
	env := d.Dispatch(context.Background(), "s", 1, domain.Command{Name: "dev.x"})
	assert.False(t, env.Success)
	assert.Equal(t, "tool execution failed: kaboom", env.Error)
}

func TestFeedbackPrompt(t *testing.T) {
	tests := []struct {
		name    string
		results []domain.Envelope
		want    string
	}{
		{
			name: "none",
			want: "SYSTEM: Tool execution results: no tools were executed. Your task is still: 'task'. What is the next step? If you are finished, use the main.stop tool.",
		},
		{
			name: "mixed",
			results: []domain.Envelope{
				{Name: "a.b", Success: true, Result: map[string]any{"n": 1}},
				{Name: "c.d", Success: false, Error: "bad"},
				{Name: "e.f", Success: true},
			},
			want: `SYSTEM: Tool execution results: Tool a.b executed successfully. Result: {"n":1}; Tool c.d failed. Error: bad; Tool e.f executed successfully. Result: None. Your task is still: 'task'. What is the next step? If you are finished, use the main.stop tool.`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeedbackPrompt("task", tt.results))
		})
	}
}
