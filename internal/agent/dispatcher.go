package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zenai/internal/domain"
	"zenai/internal/metrics"
)

// Executor runs a tool by name. *tool.Registry satisfies it.
type Executor interface {
	Execute(ctx context.Context, name, args string) domain.ToolResult
}

// Dispatcher runs one command and always produces an envelope.
type Dispatcher struct {
	tools   Executor
	journal domain.Journal
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewDispatcher(tools Executor, journal domain.Journal, m *metrics.Collector, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{tools: tools, journal: journal, metrics: m, logger: logger}
}

// Dispatch executes cmd for the given session turn.
func (d *Dispatcher) Dispatch(ctx context.Context, session string, turn int, cmd domain.Command) domain.Envelope {
	start := time.Now()
	res := d.execute(ctx, cmd)
	took := time.Since(start)
	env := domain.NewEnvelope(cmd.Name, res)

	d.logger.Info("tool executed",
		"session", session,
		"turn", turn,
		"tool", cmd.Name,
		"success", env.Success,
		"action", env.Action,
		"ms", took.Milliseconds(),
	)
	if !env.Success {
		d.logger.Debug("tool failure detail", "tool", cmd.Name, "err", env.Error)
	}
	d.metrics.ToolDispatched(cmd.Name, env.Success, took)

	if d.journal != nil {
		entry := domain.AuditEntry{
			Session:   session,
			Turn:      turn,
			Tool:      cmd.Name,
			Args:      cmd.Args,
			Success:   env.Success,
			Error:     env.Error,
			Action:    env.Action,
			LatencyMs: took.Milliseconds(),
			CreatedAt: start,
		}
		if err := d.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
			d.logger.Warn("audit record failed", "tool", cmd.Name, "err", err)
		}
	}
	return env
}

func (d *Dispatcher) execute(ctx context.Context, cmd domain.Command) (res domain.ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("executor panicked", "tool", cmd.Name, "panic", p)
			res = domain.Fail("tool execution failed: %v", p)
		}
	}()
	if d.tools == nil {
		return domain.Fail("tool '%s' not found", cmd.Name)
	}
	return d.tools.Execute(ctx, cmd.Name, cmd.Args)
}

// FeedbackPrompt is the prompt sent after a turn's tools ran.
func FeedbackPrompt(message string, results []domain.Envelope) string {
	summary := "no tools were executed"
	if len(results) > 0 {
		parts := make([]string, len(results))
		for i, r := range results {
			parts[i] = Summarize(r)
		}
		summary = strings.Join(parts, "; ")
	}
	return fmt.Sprintf("SYSTEM: Tool execution results: %s. Your task is still: '%s'. What is the next step? If you are finished, use the main.stop tool.",
		summary, message)
}

// Summarize renders one envelope for the feedback prompt.
func Summarize(r domain.Envelope) string {
	if r.Success {
		return fmt.Sprintf("Tool %s executed successfully. Result: %s", r.Name, formatResult(r.Result))
	}
	return fmt.Sprintf("Tool %s failed. Error: %s", r.Name, r.Error)
}

func formatResult(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprint(t)
	}
}
