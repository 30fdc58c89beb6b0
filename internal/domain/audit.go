package domain

import (
	"context"
	"time"
)

// AuditEntry records one tool dispatch.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Session   string    `json:"session"`
	Turn      int       `json:"turn"`
	Tool      string    `json:"tool"`
	Args      string    `json:"args"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Action    Action    `json:"action,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal persists audit entries.
type Journal interface {
	Record(ctx context.Context, entry AuditEntry) error
	Recent(ctx context.Context, session string, limit int) ([]AuditEntry, error)
	Close() error
}
