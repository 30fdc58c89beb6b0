// Package audit keeps a SQLite journal of tool dispatches.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zenai/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteJournal implements domain.Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.Journal = (*SQLiteJournal)(nil)

func NewSQLiteJournal(dbPath string, logger *slog.Logger) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &SQLiteJournal{db: db, logger: logger}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_audit (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session     TEXT NOT NULL,
		turn        INTEGER NOT NULL,
		tool_name   TEXT NOT NULL,
		args        TEXT,
		success     INTEGER NOT NULL,
		error       TEXT,
		action      TEXT,
		latency_ms  INTEGER DEFAULT 0,
		created_at  INTEGER NOT NULL -- unix millis
	);
	CREATE INDEX IF NOT EXISTS idx_tool_audit_session ON tool_audit(session, id);
	`
	_, err := j.db.Exec(schema)
	return err
}

func (j *SQLiteJournal) Record(ctx context.Context, e domain.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO tool_audit (session, turn, tool_name, args, success, error, action, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Session, e.Turn, e.Tool, e.Args, e.Success, e.Error, string(e.Action), e.LatencyMs, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first. An empty session means all sessions.
func (j *SQLiteJournal) Recent(ctx context.Context, session string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, session, turn, tool_name, args, success, error, action, latency_ms, created_at
		FROM tool_audit`
	args := []any{}
	if session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var errText, action sql.NullString
		var args sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.Session, &e.Turn, &e.Tool, &args, &e.Success, &errText, &action, &e.LatencyMs, &created); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Args = args.String
		e.Error = errText.String
		e.Action = domain.Action(action.String)
		e.CreatedAt = time.UnixMilli(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than the cutoff and returns how many were removed.
func (j *SQLiteJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM tool_audit WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return res.RowsAffected()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
