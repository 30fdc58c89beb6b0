package channel

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"zenai/internal/agent"
	"zenai/internal/domain"
	"zenai/internal/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sendCall struct {
	session string
	message string
	allowed []string
}

// fakeAgent replays canned events and records calls.
type fakeAgent struct {
	mu      sync.Mutex
	events  []domain.Event
	sendErr error
	ctlErr  error
	state   domain.RunState
	sends   []sendCall
	paused  []string
	stopped []string
	resets  []string
	cmds    []string
	handled map[string]agent.CommandResult
	block   chan struct{} // when set, HandleCommand waits for it to close
}

func newFakeAgent(events ...domain.Event) *fakeAgent {
	return &fakeAgent{events: events, state: domain.StateIdle, handled: map[string]agent.CommandResult{}}
}

func (f *fakeAgent) stream() <-chan domain.Event {
	ch := make(chan domain.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

func (f *fakeAgent) Send(ctx context.Context, session, message string, allowed []string) (<-chan domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sends = append(f.sends, sendCall{session, message, allowed})
	return f.stream(), nil
}

func (f *fakeAgent) Resume(ctx context.Context, session string) (<-chan domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctlErr != nil {
		return nil, f.ctlErr
	}
	return f.stream(), nil
}

func (f *fakeAgent) Pause(session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctlErr != nil {
		return f.ctlErr
	}
	f.paused = append(f.paused, session)
	f.state = domain.StatePaused
	return nil
}

func (f *fakeAgent) Stop(session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctlErr != nil {
		return f.ctlErr
	}
	f.stopped = append(f.stopped, session)
	f.state = domain.StateStopped
	return nil
}

func (f *fakeAgent) Reset(ctx context.Context, session string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, session)
	return nil
}

func (f *fakeAgent) State(session string) domain.RunState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAgent) HandleCommand(ctx context.Context, session string, cmd *agent.ChatCommand) agent.CommandResult {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd.Name)
	res, ok := f.handled[cmd.Name]
	// a handled /continue streams the canned episode
	if ok && res.Events == nil && cmd.Name == "continue" {
		res.Events = f.stream()
	}
	return res
}

func (f *fakeAgent) Sends() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.sends...)
}

type staticTools map[string]tool.Summary

func (s staticTools) Summaries() map[string]tool.Summary { return s }

// episode is a short finished run: one response, one tool call, done.
func episode() []domain.Event {
	env := domain.NewEnvelope("dev.echo", domain.OK("echo:hi"))
	return []domain.Event{
		{Type: domain.EventResponse, Turn: 1, Text: "Working on it. {tool main.stop}", Speech: "Working on it.", State: domain.StateRunning},
		{Type: domain.EventToolResult, Turn: 1, Tool: &env, State: domain.StateRunning},
		{Type: domain.EventDone, Turn: 1, State: domain.StateStopped, Reason: domain.ReasonStop},
	}
}
