package ai

import (
	"testing"

	"github.com/kayz/sqlpal/internal/config"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	if _, err := New(config.AIConfig{Provider: "gemini"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(config.AIConfig{Provider: "palm", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_MODEL", "")

	cases := []struct {
		provider string
		want     string
	}{
		{"gemini", "gemini"},
		{"openai", "openai"},
		{"claude", "claude"},
		{"anthropic", "claude"},
	}
	for _, c := range cases {
		p, err := New(config.AIConfig{Provider: c.provider, APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", c.provider, err)
		}
		if p.Name() != c.want {
			t.Fatalf("New(%q).Name() = %q, want %q", c.provider, p.Name(), c.want)
		}
	}
}

func TestNewEnvOverridesConfig(t *testing.T) {
	t.Setenv("AI_PROVIDER", "claude")
	t.Setenv("AI_API_KEY", "env-key")

	p, err := New(config.AIConfig{Provider: "gemini"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "claude" {
		t.Fatalf("expected env provider to win, got %q", p.Name())
	}
}
