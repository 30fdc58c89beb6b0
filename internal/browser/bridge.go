package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Bridge drives a Chrome instance for the browser tool. Pages are loaded
// one at a time because Chrome locks its profile directory.
type Bridge struct {
	mu         sync.Mutex
	profileDir string
	headless   bool
	timeout    time.Duration
	logger     *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir string // Chrome user data directory (persists cookies/sessions)
	Headless   bool
	Timeout    time.Duration // per page load
	Logger     *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		profileDir: cfg.ProfileDir,
		headless:   cfg.Headless,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

func (b *Bridge) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)
	if b.profileDir != "" {
		if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
			b.logger.Warn("cannot create browser profile dir", "dir", b.profileDir, "err", err)
		} else {
			opts = append(opts, chromedp.UserDataDir(b.profileDir))
		}
	}
	if headless {
		return append(opts, chromedp.Headless)
	}
	return append(opts, chromedp.Flag("headless", false))
}

// newContext starts a browser. The caller must call cancel when done.
func (b *Bridge) newContext(parent context.Context, headless bool) (context.Context, context.CancelFunc) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, b.allocatorOptions(headless)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

// ReadText loads url and returns the visible text of selector (default body).
func (b *Bridge) ReadText(ctx context.Context, url, selector string) (string, error) {
	if selector == "" {
		selector = "body"
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	taskCtx, cancel := b.newContext(ctx, b.headless)
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	start := time.Now()
	var text string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	b.logger.Debug("page read", "url", url, "selector", selector, "len", len(text), "ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(text), nil
}

// Login opens a visible browser on url so the user can sign in. Cookies
// persist in the profile directory. It returns when ctx is cancelled.
func (b *Bridge) Login(ctx context.Context, url string) error {
	if b.profileDir == "" {
		return fmt.Errorf("login needs tools.browser.profileDir to keep the session")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	taskCtx, cancel := b.newContext(context.WithoutCancel(ctx), false)
	defer cancel()
	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}
	b.logger.Info("browser opened; log in, then press Ctrl+C", "url", url)
	<-ctx.Done()
	b.logger.Info("login session saved", "profile", b.profileDir)
	return nil
}
