package channel

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"zenai/internal/agent"
	"zenai/internal/domain"
)

// scriptedModel blocks its first turn until release is closed.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	prompts int
	entered chan struct{}
	release chan struct{}
}

func (m *scriptedModel) Name() string                               { return "scripted" }
func (m *scriptedModel) StartSession(context.Context, string) error { return nil }
func (m *scriptedModel) ResetSession(context.Context, string) error { return nil }

func (m *scriptedModel) SendTurn(ctx context.Context, _ domain.TurnRequest) (string, error) {
	m.mu.Lock()
	m.prompts++
	first := m.prompts == 1
	m.mu.Unlock()
	if first {
		close(m.entered)
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return "done", nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

func (m *scriptedModel) turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts
}

type echoTools struct{}

func (echoTools) Execute(_ context.Context, name, args string) domain.ToolResult {
	if name == "main.stop" {
		return domain.ToolResult{Success: true, Result: "stopped", Action: domain.ActionStop}
	}
	return domain.OK("echo:" + args)
}

// syncBuffer is a bytes.Buffer safe for the CLI writer and the test reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCLI_ContinueAfterLongPausedSegment(t *testing.T) {
	model := &scriptedModel{
		replies: []string{strings.Repeat("{tool dev.echo x} ", 100), "{tool main.stop}"},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	loop := agent.NewLoop(agent.LoopConfig{Model: model, Tools: echoTools{}, Logger: testLogger()})

	in, feed := io.Pipe()
	out := &syncBuffer{}
	cli := NewCLI(CLIConfig{Agent: loop, Session: "term", Logger: testLogger(), In: in, Out: out})

	finished := make(chan error, 1)
	go func() { finished <- cli.Start(context.Background()) }()

	io.WriteString(feed, "task\n")
	<-model.entered
	io.WriteString(feed, "/pause\n")
	waitFor(t, "pause", func() bool { return loop.State("term") == domain.StatePaused })

	close(model.release)
	io.WriteString(feed, "/continue\n")
	waitFor(t, "episode end", func() bool { return loop.State("term") == domain.StateStopped })
	feed.Close()

	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("CLI did not return; state=%s", loop.State("term"))
	}
	if !strings.Contains(out.String(), "Resuming.") {
		t.Errorf("output missing resume notice:\n%s", out.String())
	}
	if n := model.turns(); n != 2 {
		t.Errorf("expected 2 model turns, got %d", n)
	}
}
