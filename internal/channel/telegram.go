package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"zenai/internal/agent"
	"zenai/internal/domain"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// telegramBot is the subset of *tgbotapi.BotAPI the channel uses.
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram runs one agent session per chat.
type Telegram struct {
	token     string
	allowFrom []int64 // empty allows everyone
	parseMode string
	allowed   []string

	agent  Agent
	bot    telegramBot
	logger *slog.Logger
	sleep  func(time.Duration)
	relays sync.WaitGroup
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // user IDs
	ParseMode string
	Allowed   []string // tool allow-list applied to every message
	Agent     Agent
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowFrom []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowFrom = append(allowFrom, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowFrom,
		parseMode: cfg.ParseMode,
		allowed:   cfg.Allowed,
		agent:     cfg.Agent,
		logger:    cfg.Logger,
		sleep:     time.Sleep,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects and long-polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	if t.bot == nil {
		bot, err := tgbotapi.NewBotAPI(t.token)
		if err != nil {
			return fmt.Errorf("telegram bot init: %w", err)
		}
		t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)
		t.bot = bot
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	t.logger.Info("telegram polling started")

	defer t.relays.Wait()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// Stop is a no-op; polling ends when Start's context is cancelled.
// StopReceivingUpdates panics when called twice.
func (t *Telegram) Stop() error { return nil }

func sessionFor(chatID int64) string {
	return "telegram:" + strconv.FormatInt(chatID, 10)
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user", "user_id", userID, "username", msg.From.UserName)
		t.sendMessage(chatID, "Unauthorized. Your user ID is not in the allow list.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	session := sessionFor(chatID)

	if msg.IsCommand() {
		name := msg.Command()
		if name == "start" {
			t.sendMessage(chatID, "Hello! Send me a task and I'll work on it step by step.\n\nType /help for commands.")
			return
		}
		cmd := &agent.ChatCommand{Name: name, Args: strings.Fields(msg.CommandArguments()), Raw: text}
		if isControl(name) {
			// continue and new wait for the in-flight turn; keep polling meanwhile
			t.relays.Add(1)
			go func() {
				defer t.relays.Done()
				t.runCommand(ctx, chatID, session, cmd)
			}()
			return
		}
		if t.runCommand(ctx, chatID, session, cmd) {
			return
		}
	}

	t.logger.Info("telegram message received", "user_id", userID, "chat_id", chatID, "text_len", len(text))
	_, _ = t.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	events, err := t.agent.Send(ctx, session, text, t.allowed)
	if err != nil {
		t.sendMessage(chatID, "Error: "+err.Error())
		return
	}
	t.relay(chatID, events)
}

// isControl reports whether a command drives the episode and may block.
func isControl(name string) bool {
	switch name {
	case "pause", "continue", "resume", "stop", "new", "clear":
		return true
	}
	return false
}

// runCommand runs a slash command and reports whether the agent handled it.
func (t *Telegram) runCommand(ctx context.Context, chatID int64, session string, cmd *agent.ChatCommand) bool {
	res := t.agent.HandleCommand(ctx, session, cmd)
	if !res.Handled {
		return false
	}
	if res.Response != "" {
		t.sendMessage(chatID, res.Response)
	}
	if res.Events != nil {
		t.relay(chatID, res.Events)
	}
	return true
}

// relay posts the outcome of an episode segment once it ends.
func (t *Telegram) relay(chatID int64, events <-chan domain.Event) {
	t.relays.Add(1)
	go func() {
		defer t.relays.Done()
		t.sendMessage(chatID, Transcript(agent.Collect(events)))
	}()
}

func (t *Telegram) isAllowed(userID int64) bool {
	return len(t.allowFrom) == 0 || slices.Contains(t.allowFrom, userID)
}

// chunkMessage splits text at newlines where possible so every piece fits a
// Telegram message.
func chunkMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := strings.LastIndex(text[:maxLen], "\n")
		if cutAt < maxLen/2 {
			cutAt = runeCut(text, maxLen)
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// runeCut backs n off to the start of a UTF-8 sequence.
func runeCut(s string, n int) int {
	for i := n; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return i
		}
	}
	return n
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	for _, chunk := range chunkMessage(text, telegramMaxMsgLen) {
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk tries the configured parse mode first, falls back to plain text
// on entity errors, and backs off on rate limits.
func (t *Telegram) sendChunk(chatID int64, text string) {
	parseMode := t.parseMode
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = parseMode

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		var apiErr *tgbotapi.Error
		switch {
		case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
			wait := time.Duration(apiErr.RetryAfter) * time.Second
			t.logger.Warn("telegram rate limited, backing off", "retry_after", wait, "attempt", attempt+1)
			t.sleep(wait)
		case parseMode != "" && strings.Contains(err.Error(), "can't parse entities"):
			t.logger.Warn("telegram markdown parse error, retrying as plain text", "err", err)
			parseMode = ""
		case attempt < telegramMaxSendRetries:
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			t.sleep(backoff)
		default:
			t.logger.Error("telegram send failed after retries", "err", err, "attempts", attempt+1)
		}
	}
}
