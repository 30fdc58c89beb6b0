package tool

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"zenai/internal/command"
	"zenai/internal/domain"
)

// Names of the tools that are always permitted.
const (
	SpeakTool  = "main.speak"
	StopTool   = "main.stop"
	MemoryTool = "main.memory"
)

// Deps carries what the compiled tools need at runtime.
type Deps struct {
	Workspace string
	BackupDir string
	Browser   PageReader // nil disables main.browser
	Logger    *slog.Logger
}

// Builtins returns the compiled entry points keyed by tool name. A unit is
// only loaded when its manifest is also present.
func Builtins(deps Deps) map[string]domain.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return map[string]domain.Handler{
		SpeakTool:      domain.HandlerFunc(speak),
		StopTool:       domain.HandlerFunc(stop),
		MemoryTool:     domain.HandlerFunc(memory),
		"main.example": domain.HandlerFunc(example),
		"main.files":   NewFilesTool(deps.Workspace, deps.BackupDir, logger),
		"main.browser": NewBrowserTool(deps.Browser),
	}
}

var speakTextRe = regexp.MustCompile(`(^|\s)text\s*=`)

// speak treats everything after text= as the utterance, so embedded quotes
// and unquoted sentences survive. Only the outer quotes are removed.
func speak(_ context.Context, raw string) (any, error) {
	loc := speakTextRe.FindStringIndex(raw)
	if loc == nil {
		return domain.Fail("missing required parameter: text"), nil
	}
	rest := strings.TrimSpace(raw[loc[1]:])
	var text string
	if strings.HasPrefix(rest, `"""`) {
		text = command.ParseArgs(raw).String("text")
	} else {
		text = strings.Trim(rest, `"'`)
	}
	return domain.ToolResult{Success: true, Result: text, Action: domain.ActionSpeak}, nil
}

func stop(_ context.Context, raw string) (any, error) {
	reason := "User requested stop"
	if args := command.ParseArgs(raw); args.String("reason") != "" {
		reason = args.String("reason")
	}
	return domain.ToolResult{
		Success: true,
		Result:  "Stopping system: " + reason,
		Action:  domain.ActionStop,
	}, nil
}

// memory is a placeholder until long-term memory exists.
func memory(context.Context, string) (any, error) {
	return domain.Fail("memory tool is not implemented yet"), nil
}

func example(_ context.Context, raw string) (any, error) {
	args := command.ParseArgs(raw).Typed()
	return domain.OK(fmt.Sprintf("Executed Example tool: first_arg = %v, second_arg = %v",
		args["first_arg"], args["second_arg"])), nil
}
