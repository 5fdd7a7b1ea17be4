package ai

import (
	"context"
	"fmt"

	"github.com/timmy/hireflow/internal/config"
)

// NewProvider creates the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg *config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(&OpenAIConfig{
			Model:           cfg.Model,
			ExtractionModel: cfg.ExtractionModel,
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			Timeout:         cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.GeminiModel())
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}
