package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const claudeDefaultModel = "claude-sonnet-4-20250514"

type claudeProvider struct {
	client *anthropic.Client
	model  string
}

type claudeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func newClaudeProvider(cfg claudeConfig) (*claudeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.Model == "" {
		cfg.Model = claudeDefaultModel
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &claudeProvider{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
	}, nil
}

func (p *claudeProvider) Name() string {
	return "claude"
}

func (p *claudeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		MaxTokens: 4096,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText {
			b.WriteString(block.GetText())
		}
	}
	return b.String(), nil
}
