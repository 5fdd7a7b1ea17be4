package config

import (
	"fmt"
	"os"
	"time"
)

// AIConfig configures the external scoring, matching and extraction collaborators.
type AIConfig struct {
	Provider        string        `mapstructure:"provider"`         // "openai" (any OpenAI-compatible API) or "gemini"
	Model           string        `mapstructure:"model"`            // Default chat model; scoring profiles may override
	ExtractionModel string        `mapstructure:"extraction_model"` // Multimodal model used for document text extraction
	APIKey          string        `mapstructure:"api_key"`
	APIKeyEnv       string        `mapstructure:"api_key_env"`
	BaseURL         string        `mapstructure:"base_url"`
	BaseURLEnv      string        `mapstructure:"base_url_env"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Gemini          GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// ResolveEnvVars resolves environment variable references in the configuration.
// Direct values (APIKey, BaseURL) take precedence if already set.
func (c *AIConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
	if c.Gemini.APIKeyEnv != "" && c.Gemini.APIKey == "" {
		if val := os.Getenv(c.Gemini.APIKeyEnv); val != "" {
			c.Gemini.APIKey = val
		}
	}
}

// Validate checks that the AI configuration names a known provider.
func (c *AIConfig) Validate() error {
	switch c.Provider {
	case "openai":
		if c.BaseURL == "" {
			return fmt.Errorf("ai: base_url is required for provider %q", c.Provider)
		}
	case "gemini":
		// Model falls back to the top-level model when unset
	default:
		return fmt.Errorf("ai: unknown provider %q", c.Provider)
	}
	return nil
}

// ValidateWithAPIKey validates the configuration including the API key requirement.
// Use this when the provider will actually be called.
func (c *AIConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Provider == "gemini" {
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("ai: gemini api_key is required (set directly or via %s)", c.Gemini.APIKeyEnv)
		}
		return nil
	}
	if c.APIKey == "" {
		return fmt.Errorf("ai: api_key is required (set directly or via AI_API_KEY)")
	}
	return nil
}

// GeminiModel returns the model id for the gemini provider.
func (c *AIConfig) GeminiModel() string {
	if c.Gemini.Model != "" {
		return c.Gemini.Model
	}
	return c.Model
}
