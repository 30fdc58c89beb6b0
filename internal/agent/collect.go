package agent

import (
	"strings"

	"zenai/internal/domain"
)

// ChatResult aggregates the events of one episode segment for
// request/response callers.
type ChatResult struct {
	AIResponse string            `json:"ai_response"`
	Responses  []string          `json:"responses,omitempty"`
	Speech     []string          `json:"speech,omitempty"`
	Tools      []domain.Envelope `json:"tools"`
	Stop       bool              `json:"stop"`
	State      domain.RunState   `json:"state"`
	Reason     string            `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Collect drains events until the channel is closed.
func Collect(events <-chan domain.Event) ChatResult {
	res := ChatResult{Tools: []domain.Envelope{}, State: domain.StateRunning}
	for e := range events {
		switch e.Type {
		case domain.EventResponse:
			res.Responses = append(res.Responses, e.Text)
		case domain.EventSpeech:
			res.Speech = append(res.Speech, e.Text)
		case domain.EventToolResult:
			if e.Tool != nil {
				res.Tools = append(res.Tools, *e.Tool)
			}
		case domain.EventPaused:
			res.State = domain.StatePaused
		case domain.EventDone:
			res.State = domain.StateStopped
			res.Reason = e.Reason
			res.Stop = e.Reason == domain.ReasonStop
		case domain.EventError:
			res.State = domain.StateStopped
			res.Reason = e.Reason
			res.Error = e.Error
		}
	}
	res.AIResponse = strings.Join(res.Responses, "\n\n")
	return res
}
