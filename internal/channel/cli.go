package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"zenai/internal/agent"
	"zenai/internal/domain"
)

// CLI is an interactive terminal chat bound to one session.
type CLI struct {
	agent   Agent
	session string
	allowed []string
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
}

type CLIConfig struct {
	Agent   Agent
	Session string
	Allowed []string // tool allow-list applied to every message
	Logger  *slog.Logger
	In      io.Reader
	Out     io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Session == "" {
		cfg.Session = "cli"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		agent:   cfg.Agent,
		session: cfg.Session,
		allowed: cfg.Allowed,
		logger:  cfg.Logger,
		in:      cfg.In,
		out:     cfg.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

func isQuit(line string) bool {
	return line == "/quit" || line == "/exit" || line == "/q"
}

// Start runs the REPL until input ends, the user quits, or ctx is cancelled.
// Episode events are printed while the prompt stays responsive, so /pause
// and /stop can be typed mid-episode.
func (c *CLI) Start(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprintln(c.out, "Zen AI CLI. Type a message and press Enter. /help lists commands, /quit exits.")
	c.prompt()

	var events <-chan domain.Event
	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-events:
			if !ok {
				events = nil
				c.prompt()
				continue
			}
			c.print(e)

		case line, ok := <-lines:
			if !ok {
				c.drain(events)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				c.prompt()
				continue
			}
			if isQuit(line) {
				c.logger.Info("user requested quit")
				if events != nil {
					_ = c.agent.Stop(c.session)
					c.drain(events)
				}
				return nil
			}
			if next := c.handle(ctx, line); next != nil {
				c.drain(events)
				events = next
			} else if events == nil {
				c.prompt()
			}
		}
	}
}

// handle runs a slash command or starts an episode. It returns a new event
// stream when one was opened.
func (c *CLI) handle(ctx context.Context, line string) <-chan domain.Event {
	if cmd := agent.ParseCommand(line); cmd != nil {
		res := c.agent.HandleCommand(ctx, c.session, cmd)
		if res.Handled {
			if res.Response != "" {
				fmt.Fprintln(c.out, res.Response)
			}
			return res.Events
		}
	}
	events, err := c.agent.Send(ctx, c.session, line, c.allowed)
	if err != nil {
		fmt.Fprintln(c.out, "Error:", err)
		return nil
	}
	return events
}

func (c *CLI) drain(events <-chan domain.Event) {
	if events == nil {
		return
	}
	for e := range events {
		c.print(e)
	}
}

func (c *CLI) print(e domain.Event) {
	if text := Render(e); text != "" {
		fmt.Fprintln(c.out, text)
	}
}

func (c *CLI) prompt() {
	fmt.Fprint(c.out, "You> ")
}

// Stop is a no-op; the CLI exits when Start returns.
func (c *CLI) Stop() error { return nil }
