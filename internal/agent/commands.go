package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"zenai/internal/domain"
)

const defaultHistoryRows = 10

// ChatCommand represents a parsed slash command.
type ChatCommand struct {
	Name string   // command name without "/"
	Args []string // arguments after the command
	Raw  string   // original full text
}

// CommandResult holds the response for a handled command.
type CommandResult struct {
	Response string              // text response to send back
	Handled  bool                // false means the text is a normal message
	Events   <-chan domain.Event // set when the command resumed an episode
}

// ParseCommand checks if a message starts with "/" and parses it.
// Returns nil if the message is not a command.
func ParseCommand(text string) *ChatCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if name == "" {
		return nil
	}
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return &ChatCommand{Name: name, Args: args, Raw: text}
}

// HandleCommand runs a control command for a session. Unknown commands
// return Handled=false so the text can be sent to the model instead.
func (l *Loop) HandleCommand(ctx context.Context, sessionID string, cmd *ChatCommand) CommandResult {
	switch cmd.Name {
	case "help":
		return CommandResult{Response: helpText(), Handled: true}

	case "pause":
		if err := l.Pause(sessionID); err != nil {
			return CommandResult{Response: "Nothing is running.", Handled: true}
		}
		return CommandResult{Response: "Pausing after the current step. Use /continue to resume.", Handled: true}

	case "continue", "resume":
		events, err := l.Resume(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrNotPaused) {
				return CommandResult{Response: "Nothing is paused.", Handled: true}
			}
			return CommandResult{Response: fmt.Sprintf("Resume failed: %v", err), Handled: true}
		}
		return CommandResult{Response: "Resuming.", Handled: true, Events: events}

	case "stop":
		if err := l.Stop(sessionID); err != nil {
			return CommandResult{Response: "Nothing is running.", Handled: true}
		}
		return CommandResult{Response: "Stopped.", Handled: true}

	case "new", "clear":
		if err := l.Reset(ctx, sessionID); err != nil {
			return CommandResult{Response: fmt.Sprintf("Reset failed: %v", err), Handled: true}
		}
		return CommandResult{Response: "Conversation cleared. Starting fresh.", Handled: true}

	case "state", "status":
		return CommandResult{Response: l.statusText(sessionID), Handled: true}

	case "tools":
		return CommandResult{Response: l.toolsText(), Handled: true}

	case "history":
		return CommandResult{Response: l.historyText(ctx, sessionID, cmd.Args), Handled: true}

	case "version":
		return CommandResult{Response: fmt.Sprintf("Zen AI v%s (%s/%s, Go %s)", l.versionString(), runtime.GOOS, runtime.GOARCH, runtime.Version()), Handled: true}

	default:
		return CommandResult{Handled: false}
	}
}

func helpText() string {
	return `Commands

/help      Show this help message
/pause     Pause after the current step
/continue  Resume a paused task
/stop      Stop the current task
/new       Start a new conversation
/state     Show session state
/tools     List available tools
/history   Show recent tool calls (/history 20)
/version   Show version info`
}

func (l *Loop) versionString() string {
	if l.version == "" {
		return "dev"
	}
	return l.version
}

func (l *Loop) statusText(sessionID string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Zen AI v%s\n\n", l.versionString())
	fmt.Fprintf(&sb, "Session: %s\n", sessionID)
	fmt.Fprintf(&sb, "State: %s\n", l.State(sessionID))
	if s, ok := l.sessions.Get(sessionID); ok {
		s.mu.Lock()
		turn := s.turn
		allow := s.allow
		s.mu.Unlock()
		fmt.Fprintf(&sb, "Turn: %d/%d\n", turn, l.maxTurns)
		if allow.Active() {
			fmt.Fprintf(&sb, "Allowed tools: %s\n", strings.Join(allow.Names(), ", "))
		}
	}
	if l.model != nil {
		fmt.Fprintf(&sb, "Model: %s\n", l.model.Name())
	}
	if l.catalog != nil {
		fmt.Fprintf(&sb, "Tools: %d registered\n", len(l.catalog.List()))
	}
	fmt.Fprintf(&sb, "Uptime: %s\n", time.Since(l.startTime).Round(time.Second))
	return sb.String()
}

func (l *Loop) toolsText() string {
	if l.catalog == nil {
		return "No tools loaded."
	}
	tools := l.catalog.List()
	names := slices.Sorted(maps.Keys(tools))
	var sb strings.Builder
	fmt.Fprintf(&sb, "Available tools (%d)\n\n", len(names))
	for _, name := range names {
		desc := tools[name].Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&sb, "- %s: %s\n", name, desc)
	}
	return sb.String()
}

func (l *Loop) historyText(ctx context.Context, sessionID string, args []string) string {
	if l.journal == nil {
		return "Audit journal is disabled."
	}
	limit := defaultHistoryRows
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := l.journal.Recent(ctx, sessionID, limit)
	if err != nil {
		return fmt.Sprintf("History unavailable: %v", err)
	}
	if len(entries) == 0 {
		return "No tool calls yet."
	}
	var sb strings.Builder
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Fprintf(&sb, "%s  turn %d  %s  %s  %dms\n", e.CreatedAt.Format(time.TimeOnly), e.Turn, e.Tool, status, e.LatencyMs)
	}
	return sb.String()
}
