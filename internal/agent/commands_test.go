package agent

import (
	"context"
	"testing"

	"zenai/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	assert.Nil(t, ParseCommand("hello"))
	assert.Nil(t, ParseCommand("/"))

	cmd := ParseCommand("  /History 20 ")
	require.NotNil(t, cmd)
	assert.Equal(t, "history", cmd.Name)
	assert.Equal(t, []string{"20"}, cmd.Args)
	assert.Equal(t, "/History 20", cmd.Raw)
}

func TestHandleCommand_Unknown(t *testing.T) {
	l := newTestLoop(t, &fakeModel{}, &fakeTools{})
	res := l.HandleCommand(context.Background(), "main", ParseCommand("/dance"))
	assert.False(t, res.Handled)
}

func TestHandleCommand_PauseContinue(t *testing.T) {
	model := gatedModel("{tool dev.echo}", "{tool main.stop}")
	l := newTestLoop(t, model, &fakeTools{})
	ctx := context.Background()

	res := l.HandleCommand(ctx, "main", ParseCommand("/continue"))
	assert.Equal(t, "Nothing is paused.", res.Response)

	events, err := l.Send(ctx, "main", "task", nil)
	require.NoError(t, err)
	<-model.entered

	res = l.HandleCommand(ctx, "main", ParseCommand("/pause"))
	assert.True(t, res.Handled)
	model.gate <- struct{}{}
	Collect(events)

	res = l.HandleCommand(ctx, "main", ParseCommand("/state"))
	assert.Contains(t, res.Response, "State: paused")
	assert.Contains(t, res.Response, "Turn: 1/20")

	close(model.gate)
	res = l.HandleCommand(ctx, "main", ParseCommand("/continue"))
	require.NotNil(t, res.Events)
	assert.Equal(t, domain.ReasonStop, Collect(res.Events).Reason)
}

func TestHandleCommand_StopAndNew(t *testing.T) {
	model := &fakeModel{}
	l := newTestLoop(t, model, &fakeTools{})
	ctx := context.Background()

	res := l.HandleCommand(ctx, "main", ParseCommand("/stop"))
	assert.Equal(t, "Nothing is running.", res.Response)

	send(t, l, "hello")
	res = l.HandleCommand(ctx, "main", ParseCommand("/new"))
	assert.Equal(t, "Conversation cleared. Starting fresh.", res.Response)
	assert.Equal(t, 1, model.resets)
	assert.Equal(t, domain.StateIdle, l.State("main"))
}

func TestHandleCommand_ToolsAndHistory(t *testing.T) {
	model := &fakeModel{replies: []string{"{tool dev.echo}", "{tool main.stop}"}}
	l := newTestLoop(t, model, &fakeTools{}, func(c *LoopConfig) {
		c.Catalog = fakeCatalog{"dev.echo": {Description: "Echo"}, "dev.none": {}}
	})
	ctx := context.Background()

	res := l.HandleCommand(ctx, "main", ParseCommand("/tools"))
	assert.Contains(t, res.Response, "Available tools (2)")
	assert.Contains(t, res.Response, "- dev.echo: Echo")
	assert.Contains(t, res.Response, "- dev.none: No description")

	res = l.HandleCommand(ctx, "main", ParseCommand("/history"))
	assert.Equal(t, "No tool calls yet.", res.Response)

	send(t, l, "go")
	res = l.HandleCommand(ctx, "main", ParseCommand("/history 1"))
	assert.Contains(t, res.Response, "turn 2  main.stop  ok")
	assert.NotContains(t, res.Response, "dev.echo")
}
