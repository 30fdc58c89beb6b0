package channel

import (
	"fmt"
	"strings"

	"zenai/internal/agent"
	"zenai/internal/command"
	"zenai/internal/domain"
)

// Render turns an event into a line of chat text. Events with nothing to
// show render as "".
func Render(e domain.Event) string {
	switch e.Type {
	case domain.EventResponse:
		return e.Speech
	case domain.EventSpeech:
		return "🔊 " + e.Text
	case domain.EventToolResult:
		if e.Tool == nil {
			return ""
		}
		if e.Tool.Success {
			return "✓ " + e.Tool.Name
		}
		return fmt.Sprintf("✗ %s: %s", e.Tool.Name, e.Tool.Error)
	case domain.EventPaused:
		return "Paused. Use /continue to resume."
	case domain.EventError:
		return "Error: " + e.Error
	case domain.EventDone:
		switch e.Reason {
		case domain.ReasonMaxTurns:
			return "Stopped: turn limit reached."
		case domain.ReasonCancelled:
			return "Cancelled."
		}
	}
	return ""
}

// Transcript renders a collected episode segment as one message.
func Transcript(res agent.ChatResult) string {
	var out []string
	for _, s := range res.Responses {
		if s = command.Strip(s); s != "" {
			out = append(out, s)
		}
	}
	for _, s := range res.Speech {
		out = append(out, "🔊 "+s)
	}
	for _, t := range res.Tools {
		if !t.Success {
			out = append(out, fmt.Sprintf("✗ %s: %s", t.Name, t.Error))
		}
	}
	switch {
	case res.Error != "":
		out = append(out, "Error: "+res.Error)
	case res.State == domain.StatePaused:
		out = append(out, "Paused. Use /continue to resume.")
	case res.Reason == domain.ReasonMaxTurns:
		out = append(out, "Stopped: turn limit reached.")
	}
	if len(out) == 0 {
		return "Done."
	}
	return strings.Join(out, "\n\n")
}
