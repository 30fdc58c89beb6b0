package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"zenai/internal/agent"
	"zenai/internal/audit"
	"zenai/internal/browser"
	"zenai/internal/config"
	"zenai/internal/domain"
	"zenai/internal/metrics"
	"zenai/internal/provider"
	"zenai/internal/tool"
)

// newLogger builds the process logger from the general config. When a log
// file is set, records go to both stderr and the file.
func newLogger(cfg config.GeneralConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

// runtime is everything a running agent needs, built once per command.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *tool.Registry
	model    domain.Model
	loop     *agent.Loop
	metrics  *metrics.Collector
	journal  *audit.SQLiteJournal // nil when auditing is off
	instr    *agent.InstructionBuilder
}

func loadTools(cfg *config.Config, logger *slog.Logger) *tool.Registry {
	deps := tool.Deps{
		Workspace: cfg.General.Workspace,
		BackupDir: cfg.Tools.BackupDir,
		Logger:    logger,
	}
	if b := cfg.Tools.Browser; b.Enabled {
		deps.Browser = browser.NewBridge(browser.BridgeConfig{
			ProfileDir: b.ProfileDir,
			Headless:   b.Headless,
			Timeout:    time.Duration(b.TimeoutSeconds) * time.Second,
			Logger:     logger,
		})
	}

	sources := []tool.Source{tool.BuiltinSource()}
	if src, ok := tool.DirSource(cfg.Tools.Dir); ok {
		sources = append(sources, src)
	} else {
		logger.Debug("tools directory not found", "dir", cfg.Tools.Dir)
	}
	return tool.Load(tool.LoadConfig{
		Sources:  sources,
		Builtins: tool.Builtins(deps),
		Timeout:  time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		Logger:   logger,
	})
}

func openJournal(ctx context.Context, cfg config.AuditConfig, logger *slog.Logger) (*audit.SQLiteJournal, error) {
	j, err := audit.NewSQLiteJournal(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("audit journal: %w", err)
	}
	if cfg.RetentionDays > 0 {
		before := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		if n, err := j.Prune(ctx, before); err != nil {
			logger.Warn("audit prune failed", "err", err)
		} else if n > 0 {
			logger.Info("pruned audit journal", "rows", n)
		}
	}
	return j, nil
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	if err := os.MkdirAll(cfg.General.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics.New("zenai")}
	rt.registry = loadTools(cfg, logger)

	model, err := provider.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.model = model

	rt.instr, err = agent.NewInstructionBuilder(cfg.Model.Instructions, rt.registry, logger)
	if err != nil {
		return nil, err
	}

	loopCfg := agent.LoopConfig{
		Model:          model,
		Tools:          rt.registry,
		Catalog:        rt.registry,
		Instructions:   rt.instr,
		Metrics:        rt.metrics,
		Logger:         logger,
		MaxTurns:       cfg.General.MaxTurns,
		TurnsPerMinute: cfg.General.TurnsPerMinute,
		HistoryLimit:   cfg.General.HistoryLimit,
		Version:        version,
	}
	if cfg.Audit.Enabled {
		rt.journal, err = openJournal(ctx, cfg.Audit, logger)
		if err != nil {
			rt.instr.Close()
			return nil, err
		}
		loopCfg.Journal = rt.journal
	}
	rt.loop = agent.NewLoop(loopCfg)

	logger.Info("agent ready",
		"model", model.Name(),
		"tools", len(rt.registry.Names()),
		"skipped", len(rt.registry.Skipped()),
		"audit", cfg.Audit.Enabled,
	)
	return rt, nil
}

func (rt *runtime) Close() {
	rt.instr.Close()
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.logger.Warn("close audit journal", "err", err)
		}
	}
}

// splitTools parses a comma-separated --tools flag.
func splitTools(s string) []string {
	var out []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
