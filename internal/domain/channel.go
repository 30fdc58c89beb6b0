package domain

import "context"

// Channel is a user-facing delivery surface (CLI, HTTP, Telegram).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
