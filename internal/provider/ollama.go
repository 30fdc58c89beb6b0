package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"zenai/internal/domain"
)

const (
	ollamaDefaultBase  = "http://localhost:11434"
	ollamaDefaultModel = "llama3.1:8b"
)

// Ollama talks to an Ollama server's /api/chat endpoint. Each session keeps
// its own transcript; the system message is sent fresh on every turn.
type Ollama struct {
	apiBase string
	model   string
	client  *http.Client
	retry   retryPolicy
	convs   *transcripts[ollamaMsg]
	logger  *slog.Logger
}

type OllamaConfig struct {
	APIBase      string
	Model        string
	HistoryLimit int
	Client       *http.Client
	Logger       *slog.Logger
}

func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.APIBase == "" {
		cfg.APIBase = ollamaDefaultBase
	}
	if cfg.Model == "" {
		cfg.Model = ollamaDefaultModel
	}
	if cfg.Client == nil {
		cfg.Client = newHTTPClient(defaultHTTPTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ollama{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		model:   cfg.Model,
		client:  cfg.Client,
		retry:   defaultRetry,
		convs:   newTranscripts[ollamaMsg](cfg.HistoryLimit),
		logger:  cfg.Logger,
	}
}

func (o *Ollama) Name() string { return "ollama/" + o.model }

// ollamaRequest matches the Ollama /api/chat request body.
type ollamaRequest struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message    ollamaMsg `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
	Error      string    `json:"error,omitempty"`
}

// StartSession checks the server is reachable and opens a transcript.
func (o *Ollama) StartSession(ctx context.Context, session string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.apiBase+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	o.convs.open(session)
	return nil
}

func (o *Ollama) SendTurn(ctx context.Context, req domain.TurnRequest) (string, error) {
	var msgs []ollamaMsg
	if req.Instructions != "" {
		msgs = append(msgs, ollamaMsg{Role: "system", Content: req.Instructions})
	}
	user := ollamaMsg{Role: "user", Content: req.Prompt}
	msgs = append(msgs, o.convs.snapshot(req.Session, user)...)

	body, err := json.Marshal(ollamaRequest{Model: o.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	resp, err := o.retry.do(ctx, o.client, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}, o.logger)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	text := out.Message.Content
	o.convs.append(req.Session, user, ollamaMsg{Role: "assistant", Content: text})
	o.logger.Debug("ollama turn", "session", req.Session, "done_reason", out.DoneReason, "len", len(text))
	return text, nil
}

func (o *Ollama) ResetSession(_ context.Context, session string) error {
	o.convs.reset(session)
	return nil
}
