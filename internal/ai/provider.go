package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kayz/sqlpal/internal/config"
)

// Provider turns a single prompt into a single completion. No streaming,
// no tool calling, no conversation history.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds a provider from config, filling the API key from the
// provider's conventional environment variable when the config leaves
// it empty. AI_PROVIDER / AI_API_KEY / AI_BASE_URL / AI_MODEL override
// the config file.
func New(cfg config.AIConfig) (Provider, error) {
	provider := firstNonEmpty(os.Getenv("AI_PROVIDER"), cfg.Provider, "gemini")
	apiKey := firstNonEmpty(os.Getenv("AI_API_KEY"), cfg.APIKey)
	baseURL := firstNonEmpty(os.Getenv("AI_BASE_URL"), cfg.BaseURL)
	model := firstNonEmpty(os.Getenv("AI_MODEL"), cfg.Model)

	switch strings.ToLower(provider) {
	case "gemini", "google":
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		return newOpenAICompatProvider(openAICompatConfig{
			ProviderName: "gemini",
			APIKey:       apiKey,
			BaseURL:      baseURL,
			Model:        model,
			DefaultURL:   geminiDefaultBaseURL,
			DefaultModel: geminiDefaultModel,
		})
	case "openai":
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return newOpenAICompatProvider(openAICompatConfig{
			ProviderName: "openai",
			APIKey:       apiKey,
			BaseURL:      baseURL,
			Model:        model,
			DefaultModel: openAIDefaultModel,
		})
	case "claude", "anthropic":
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		return newClaudeProvider(claudeConfig{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Model:   model,
		})
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
