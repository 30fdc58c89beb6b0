package channel

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"zenai/internal/agent"
)

type fakeBot struct {
	mu      sync.Mutex
	updates chan tgbotapi.Update
	sent    []tgbotapi.MessageConfig
	actions int
	errs    []error // returned by successive message sends
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 8)}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		b.actions++
		return tgbotapi.Message{}, nil
	}
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	b.sent = append(b.sent, msg)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.sent {
		out = append(out, m.Text)
	}
	return out
}

func newTestTelegram(a Agent, bot *fakeBot, allowFrom ...string) *Telegram {
	tg := NewTelegram(TelegramConfig{AllowFrom: allowFrom, Agent: a, Logger: testLogger()})
	tg.bot = bot
	tg.sleep = func(time.Duration) {}
	return tg
}

func textUpdate(userID, chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		name, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}}
	}
	return tgbotapi.Update{Message: msg}
}

// serve feeds updates through Start and waits for every relay to finish.
func serve(t *testing.T, tg *Telegram, bot *fakeBot, updates ...tgbotapi.Update) {
	t.Helper()
	for _, u := range updates {
		bot.updates <- u
	}
	close(bot.updates)
	if err := tg.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestTelegram_MessageRunsEpisodePerChat(t *testing.T) {
	a := newFakeAgent(episode()...)
	bot := newFakeBot()
	tg := newTestTelegram(a, bot)
	serve(t, tg, bot, textUpdate(7, 42, "do it"))

	sends := a.Sends()
	if len(sends) != 1 || sends[0].session != "telegram:42" || sends[0].message != "do it" {
		t.Fatalf("sends = %+v", sends)
	}
	texts := bot.texts()
	if len(texts) != 1 || texts[0] != "Working on it." {
		t.Errorf("sent = %q", texts)
	}
	if bot.actions != 1 {
		t.Errorf("expected a typing action, got %d", bot.actions)
	}
}

func TestTelegram_RejectsUnknownUser(t *testing.T) {
	a := newFakeAgent(episode()...)
	bot := newFakeBot()
	tg := newTestTelegram(a, bot, "100")
	serve(t, tg, bot, textUpdate(7, 42, "hi"))

	if len(a.Sends()) != 0 {
		t.Error("unauthorized message reached the agent")
	}
	if texts := bot.texts(); len(texts) != 1 || !strings.Contains(texts[0], "Unauthorized") {
		t.Errorf("sent = %q", texts)
	}
}

func TestTelegram_CommandsUseAgent(t *testing.T) {
	a := newFakeAgent()
	a.handled["pause"] = agent.CommandResult{Handled: true, Response: "Pausing after the current step."}
	bot := newFakeBot()
	tg := newTestTelegram(a, bot)
	serve(t, tg, bot, textUpdate(7, 42, "/pause"), textUpdate(7, 42, "/start"))

	if len(a.cmds) != 1 || a.cmds[0] != "pause" {
		t.Errorf("cmds = %v", a.cmds)
	}
	texts := bot.texts()
	slices.Sort(texts)
	if len(texts) != 2 || !strings.HasPrefix(texts[0], "Hello!") || texts[1] != "Pausing after the current step." {
		t.Errorf("sent = %q", texts)
	}
}

func TestTelegram_ControlCommandDoesNotStallPolling(t *testing.T) {
	a := newFakeAgent(episode()...)
	a.handled["continue"] = agent.CommandResult{Handled: true, Response: "Resuming."}
	a.block = make(chan struct{})
	bot := newFakeBot()
	tg := newTestTelegram(a, bot)

	finished := make(chan error, 1)
	go func() { finished <- tg.Start(context.Background()) }()

	bot.updates <- textUpdate(7, 42, "/continue")
	bot.updates <- textUpdate(8, 99, "other chat")
	deadline := time.Now().Add(5 * time.Second)
	for len(a.Sends()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("message from another chat was not handled while /continue was pending")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(a.block)
	close(bot.updates)
	if err := <-finished; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !slices.Contains(bot.texts(), "Resuming.") {
		t.Errorf("sent = %q", bot.texts())
	}
}

func TestTelegram_SendErrorReported(t *testing.T) {
	a := newFakeAgent()
	a.sendErr = agent.ErrEpisodePaused
	bot := newFakeBot()
	tg := newTestTelegram(a, bot)
	serve(t, tg, bot, textUpdate(7, 42, "more"))

	if texts := bot.texts(); len(texts) != 1 || texts[0] != "Error: "+agent.ErrEpisodePaused.Error() {
		t.Errorf("sent = %q", texts)
	}
}

func TestTelegram_SendChunkFallsBackToPlainText(t *testing.T) {
	bot := newFakeBot()
	bot.errs = []error{errors.New("Bad Request: can't parse entities")}
	tg := newTestTelegram(newFakeAgent(), bot)

	tg.sendChunk(1, "*broken")
	if len(bot.sent) != 1 || bot.sent[0].ParseMode != "" {
		t.Errorf("expected one plain-text send, got %+v", bot.sent)
	}
}

func TestTelegram_SendChunkHonoursRetryAfter(t *testing.T) {
	bot := newFakeBot()
	bot.errs = []error{&tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5}}}
	tg := newTestTelegram(newFakeAgent(), bot)
	var slept []time.Duration
	tg.sleep = func(d time.Duration) { slept = append(slept, d) }

	tg.sendChunk(1, "hi")
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Errorf("slept = %v", slept)
	}
	if len(bot.sent) != 1 || bot.sent[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("sent = %+v", bot.sent)
	}
}

func TestChunkMessage(t *testing.T) {
	if got := chunkMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short = %q", got)
	}
	got := chunkMessage("aaaaaa\nbbbbbb", 10)
	if len(got) != 2 || got[0] != "aaaaaa" || got[1] != "\nbbbbbb" {
		t.Errorf("newline split = %q", got)
	}
	got = chunkMessage(strings.Repeat("x", 25), 10)
	if len(got) != 3 || len(got[2]) != 5 {
		t.Errorf("hard split = %q", got)
	}
}

func TestChunkMessage_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 20) + strings.Repeat("😀", 15)
	got := chunkMessage(text, 10)
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if len(c) > 10 {
			t.Fatalf("chunk %d has %d bytes", i, len(c))
		}
	}
	if joined := strings.Join(got, ""); joined != text {
		t.Errorf("chunks lost text: %q", joined)
	}
}
