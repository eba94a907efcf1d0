package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathReadsAIAndMCPSections(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	content := `ai:
  provider: claude
  model: claude-sonnet-4-20250514
mcp:
  command: python3
  args:
    - server.py
  env:
    - "MSSQL_HOST=db.internal"
serve:
  port: 9000
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AI.Provider != "claude" {
		t.Fatalf("unexpected provider: %q", cfg.AI.Provider)
	}
	if cfg.MCP.Command != "python3" {
		t.Fatalf("unexpected mcp command: %q", cfg.MCP.Command)
	}
	if len(cfg.MCP.Env) != 1 || cfg.MCP.Env[0] != "MSSQL_HOST=db.internal" {
		t.Fatalf("unexpected mcp env: %#v", cfg.MCP.Env)
	}
	if cfg.Serve.Port != 9000 {
		t.Fatalf("unexpected serve port: %d", cfg.Serve.Port)
	}
	// untouched sections keep defaults
	if cfg.Web.Port != 18080 {
		t.Fatalf("unexpected web port default: %d", cfg.Web.Port)
	}
}

func TestLoadFromPathMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AI.Provider != "gemini" {
		t.Fatalf("unexpected default provider: %q", cfg.AI.Provider)
	}
	if cfg.MCP.Command != "python" {
		t.Fatalf("unexpected default mcp command: %q", cfg.MCP.Command)
	}
}
