package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"zenai/internal/audit"
	"zenai/internal/config"
	"zenai/internal/provider"
	"zenai/internal/tool"
)

type doctorReport struct {
	out                    io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Fprintf(r.out, "  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Fprintf(r.out, "  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Fprintf(r.out, "  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the installation",
		Long: `Verifies that the configuration, workspace, tools, audit database and
model backend are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &doctorReport{out: cmd.OutOrStdout()}
			cfgPath := resolveConfigPath()
			fmt.Fprintf(r.out, "Zen AI doctor v%s\n\n", version)

			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s (using defaults; run 'zenai init')", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.finish()
			}
			r.pass("Config validation", "valid")

			checkDir(r, "Workspace", cfg.General.Workspace)
			checkTools(r, cfg)
			if cfg.Audit.Enabled {
				checkAudit(r, cfg.Audit.DBPath)
			}
			checkModel(cmd.Context(), r, cfg)
			if cfg.Channels.Web.Enabled {
				addr := cfg.Channels.Web.Addr()
				if err := checkPort(addr); err != nil {
					r.warn("Web address", fmt.Sprintf("%s may be in use: %v", addr, err))
				} else {
					r.pass("Web address", addr+" available")
				}
			}
			if tg := cfg.Channels.Telegram; tg.Enabled && len(tg.AllowFrom) == 0 {
				r.warn("Telegram", "enabled with an empty allowFrom; anyone can use the bot")
			}
			return r.finish()
		},
	}
}

func (r *doctorReport) finish() error {
	fmt.Fprintf(r.out, "\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

func checkDir(r *doctorReport, name, dir string) {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		r.warn(name, "not found (created on first run): "+dir)
	case !info.IsDir():
		r.fail(name, "not a directory: "+dir)
	default:
		r.pass(name, dir)
	}
}

func checkTools(r *doctorReport, cfg *config.Config) {
	reg := loadTools(cfg, logger)
	names := reg.Names()
	if !hasTool(names, tool.StopTool) || !hasTool(names, tool.SpeakTool) {
		r.fail("Tools", "core tools main.speak and main.stop are not loaded")
	} else {
		r.pass("Tools", fmt.Sprintf("%d loaded", len(names)))
	}
	for _, s := range reg.Skipped() {
		r.warn("Tool "+s.Name, s.Reason)
	}
}

func checkAudit(r *doctorReport, dbPath string) {
	j, err := audit.NewSQLiteJournal(dbPath, logger)
	if err != nil {
		r.fail("Audit database", err.Error())
		return
	}
	defer j.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := j.Recent(ctx, "", 1); err != nil {
		r.fail("Audit database", err.Error())
		return
	}
	r.pass("Audit database", dbPath)
}

func checkModel(ctx context.Context, r *doctorReport, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	m, err := provider.New(ctx, cfg, logger)
	if err != nil {
		r.fail("Model", err.Error())
		return
	}
	if err := m.StartSession(ctx, "doctor"); err != nil {
		r.fail("Model", fmt.Sprintf("%s unreachable: %v", m.Name(), err))
		return
	}
	_ = m.ResetSession(ctx, "doctor")
	r.pass("Model", m.Name())
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
