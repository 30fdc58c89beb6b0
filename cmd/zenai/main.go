package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zenai/internal/browser"
	"zenai/internal/channel"
	"zenai/internal/config"
	"zenai/internal/domain"
)

var (
	version    = "0.1.0"
	logger     = slog.Default()
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:           "zenai",
		Short:         "Zen AI: a tool-using agent loop",
		Long:          "Zen AI drives a conversational model through a command/feedback loop, running tools on its behalf.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.zenai/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(browserCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("zenai", version)
		},
	})

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// setup loads the config and replaces the bootstrap logger with the
// configured one. The returned func releases the log file.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	l, closer, err := newLogger(cfg.General)
	if err != nil {
		return nil, nil, err
	}
	logger = l
	return cfg, func() { closer.Close() }, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config, workspace and tools directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			for _, dir := range []string{cfg.General.Workspace, cfg.Tools.Dir, cfg.Tools.BackupDir} {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "workspace", cfg.General.Workspace, "tools", cfg.Tools.Dir)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	var session, tools string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := setup()
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			cli := channel.NewCLI(channel.CLIConfig{
				Agent:   rt.loop,
				Session: session,
				Allowed: splitTools(tools),
				Logger:  logger,
			})
			return cli.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&session, "session", "cli", "session name")
	cmd.Flags().StringVar(&tools, "tools", "", "comma-separated tool allow-list (default: all tools)")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the enabled channels (Web API, Telegram)",
		Long:  "Starts every enabled channel against one shared agent loop. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, done, err := setup()
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	var channels []domain.Channel
	if web := cfg.Channels.Web; web.Enabled {
		wc := channel.WebConfig{
			Addr:    web.Addr(),
			Agent:   rt.loop,
			Tools:   rt.registry,
			Version: version,
			Model:   rt.model.Name(),
			Logger:  logger,
		}
		if cfg.Metrics.Enabled {
			wc.Metrics = rt.metrics
			wc.MetricsPath = cfg.Metrics.Endpoint
		}
		channels = append(channels, channel.NewWeb(wc))
	}
	if tg := cfg.Channels.Telegram; tg.Enabled {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:     tg.Token,
			AllowFrom: []string(tg.AllowFrom),
			Agent:     rt.loop,
			Logger:    logger,
		}))
	}
	if len(channels) == 0 {
		return errors.New("no channels enabled; set channels.web.enabled or channels.telegram.enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range channels {
		g.Go(func() error {
			logger.Info("channel starting", "channel", ch.Name())
			if err := ch.Start(gctx); err != nil {
				return fmt.Errorf("%s channel: %w", ch.Name(), err)
			}
			return nil
		})
	}
	logger.Info("serving. Press Ctrl+C to stop.")

	err = g.Wait()
	for _, ch := range channels {
		if err := ch.Stop(); err != nil {
			logger.Warn("channel stop", "channel", ch.Name(), "err", err)
		}
	}
	logger.Info("shutdown complete")
	return err
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List loaded and skipped tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := setup()
			if err != nil {
				return err
			}
			defer done()

			reg := loadTools(cfg, logger)
			summaries := reg.Summaries()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tools (%d):\n", len(summaries))
			for _, name := range reg.Names() {
				s := summaries[name]
				kind := "builtin"
				if s.Script {
					kind = "script"
				}
				fmt.Fprintf(out, "  %-24s %-8s %s\n", name, kind, s.Description)
			}
			skipped := reg.Skipped()
			if len(skipped) > 0 {
				fmt.Fprintf(out, "\nSkipped (%d):\n", len(skipped))
				for _, s := range skipped {
					fmt.Fprintf(out, "  %-24s %s: %s\n", s.Name, s.Source, s.Reason)
				}
			}
			return nil
		},
	}
}

func browserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browser",
		Short: "Manage the browser used by main.browser",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "login [url]",
		Short: "Open a visible browser to sign in to a site",
		Long:  "Opens Chrome on the given page using the configured profile directory. Cookies are kept for later headless use.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, done, err := setup()
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := browser.NewBridge(browser.BridgeConfig{
				ProfileDir: cfg.Tools.Browser.ProfileDir,
				Logger:     logger,
			})
			return b.Login(ctx, args[0])
		},
	})
	return cmd
}

// hasTool reports whether name is in the registry's name list.
func hasTool(names []string, name string) bool {
	return slices.Contains(names, name)
}
