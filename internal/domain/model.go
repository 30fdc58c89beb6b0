package domain

import "context"

// TurnRequest is one prompt sent to a conversational model session.
type TurnRequest struct {
	Session      string
	Prompt       string
	Instructions string // system instructions for this turn
}

// Model is a text-in/text-out conversational model with server-side memory
// keyed by session name.
type Model interface {
	Name() string
	StartSession(ctx context.Context, session string) error
	SendTurn(ctx context.Context, req TurnRequest) (string, error)
	ResetSession(ctx context.Context, session string) error
}
