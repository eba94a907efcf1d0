package ai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	// Google exposes Gemini through an OpenAI-compatible surface, which is
	// the closest Go-native path to the models this assistant targets.
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	geminiDefaultModel   = "gemini-2.5-flash"

	openAIDefaultModel = "gpt-4o-mini"
)

// openAICompatProvider implements Provider for any OpenAI-compatible API
// (OpenAI itself, Gemini's compatibility endpoint, self-hosted gateways).
type openAICompatProvider struct {
	client       *openai.Client
	model        string
	providerName string
}

type openAICompatConfig struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	Model        string
	DefaultURL   string
	DefaultModel string
}

func newOpenAICompatProvider(cfg openAICompatConfig) (*openAICompatProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.Model == "" {
		cfg.Model = cfg.DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	} else if cfg.DefaultURL != "" {
		clientCfg.BaseURL = cfg.DefaultURL
	}

	return &openAICompatProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		providerName: cfg.ProviderName,
	}, nil
}

func (p *openAICompatProvider) Name() string {
	return p.providerName
}

func (p *openAICompatProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", p.providerName, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s API returned no choices", p.providerName)
	}
	return resp.Choices[0].Message.Content, nil
}
