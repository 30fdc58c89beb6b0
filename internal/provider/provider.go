package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zenai/internal/config"
	"zenai/internal/domain"
)

// New builds the model backend selected by cfg.Model.Provider.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Model, error) {
	mc := cfg.Model
	client := newHTTPClient(time.Duration(mc.TimeoutSeconds) * time.Second)
	// transcripts hold a prompt and a reply per turn
	limit := cfg.General.HistoryLimit * 2

	switch mc.Provider {
	case "gemini":
		return NewGemini(ctx, GeminiConfig{
			APIKey:       mc.APIKey,
			APIBase:      mc.APIBase,
			Model:        mc.Name,
			HistoryLimit: limit,
			Client:       client,
			Logger:       logger,
		})
	case "ollama":
		return NewOllama(OllamaConfig{
			APIBase:      mc.APIBase,
			Model:        mc.Name,
			HistoryLimit: limit,
			Client:       client,
			Logger:       logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", mc.Provider)
	}
}
