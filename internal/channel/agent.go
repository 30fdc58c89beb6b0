package channel

import (
	"context"

	"zenai/internal/agent"
	"zenai/internal/domain"
)

// Agent is the control surface the delivery channels drive. *agent.Loop
// implements it.
type Agent interface {
	Send(ctx context.Context, session, message string, allowed []string) (<-chan domain.Event, error)
	Resume(ctx context.Context, session string) (<-chan domain.Event, error)
	Pause(session string) error
	Stop(session string) error
	Reset(ctx context.Context, session string) error
	State(session string) domain.RunState
	HandleCommand(ctx context.Context, session string, cmd *agent.ChatCommand) agent.CommandResult
}

var _ Agent = (*agent.Loop)(nil)
