package domain

// EventType classifies loop events delivered to channels.
type EventType string

const (
	EventResponse   EventType = "ai_response"
	EventSpeech     EventType = "speech"
	EventToolResult EventType = "tool_result"
	EventPaused     EventType = "paused"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Done reasons.
const (
	ReasonNoCommands = "no_commands"
	ReasonStop       = "stop"
	ReasonStopped    = "stopped" // external stop request
	ReasonMaxTurns   = "max_turns"
	ReasonError      = "error"
	ReasonCancelled  = "cancelled"
)

// Event is one item in the stream a running episode produces.
type Event struct {
	Type    EventType `json:"type"`
	Session string    `json:"session"`
	Turn    int       `json:"turn"`
	Text    string    `json:"text,omitempty"`   // full model response
	Speech  string    `json:"speech,omitempty"` // response with commands removed
	Tool    *Envelope `json:"tool,omitempty"`
	State   RunState  `json:"state,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError || e.Type == EventPaused
}
