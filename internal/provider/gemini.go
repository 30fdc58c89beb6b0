package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"zenai/internal/domain"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash"

// Gemini runs sessions against the Gemini API. The transcript of each
// session is replayed with every request.
type Gemini struct {
	client *genai.Client
	model  string
	retry  retryPolicy
	convs  *transcripts[*genai.Content]
	logger *slog.Logger
}

type GeminiConfig struct {
	APIKey       string
	APIBase      string // optional endpoint override
	Model        string
	HistoryLimit int
	Client       *http.Client
	Logger       *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required (model.apiKey or ZENAI_MODEL_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	if cfg.Client == nil {
		cfg.Client = newHTTPClient(defaultHTTPTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.Client,
	}
	if cfg.APIBase != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(cfg.APIBase, "/")
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  strings.TrimPrefix(cfg.Model, "gemini/"),
		retry:  defaultRetry,
		convs:  newTranscripts[*genai.Content](cfg.HistoryLimit),
		logger: cfg.Logger,
	}, nil
}

func (g *Gemini) Name() string { return "gemini/" + g.model }

func (g *Gemini) StartSession(_ context.Context, session string) error {
	g.convs.open(session)
	return nil
}

func (g *Gemini) SendTurn(ctx context.Context, req domain.TurnRequest) (string, error) {
	user := genai.NewContentFromText(req.Prompt, genai.RoleUser)
	contents := g.convs.snapshot(req.Session, user)

	var config *genai.GenerateContentConfig
	if req.Instructions != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.Instructions)}},
		}
	}

	var resp *genai.GenerateContentResponse
	err := g.retry.call(ctx, g.logger, func() error {
		var err error
		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		return err
	}, geminiRetryable)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("gemini request failed (status=%d): %s", apiErr.Code, strings.TrimSpace(apiErr.Message))
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	g.convs.append(req.Session, user, genai.NewContentFromText(text, genai.RoleModel))
	g.logger.Debug("gemini turn", "session", req.Session, "len", len(text))
	return text, nil
}

func (g *Gemini) ResetSession(_ context.Context, session string) error {
	g.convs.reset(session)
	return nil
}

func geminiRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
