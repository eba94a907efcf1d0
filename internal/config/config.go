package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	AI        AIConfig       `yaml:"ai,omitempty"`
	MCP       MCPConfig      `yaml:"mcp,omitempty"`
	Serve     ServeConfig    `yaml:"serve,omitempty"`
	Web       WebConfig      `yaml:"web,omitempty"`
	History   HistoryConfig  `yaml:"history,omitempty"`
	Schedule  ScheduleConfig `yaml:"schedule,omitempty"`
	Platforms PlatformConfig `yaml:"platforms,omitempty"`
	Logging   LoggingConfig  `yaml:"logging,omitempty"`
}

// AIConfig selects the completion provider used for translation and
// summarization. APIKey falls back to provider-specific environment
// variables when empty (GOOGLE_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY).
type AIConfig struct {
	Provider string `yaml:"provider,omitempty"` // "gemini", "openai", "claude"
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// MCPConfig describes how to launch the SQL tool server subprocess.
type MCPConfig struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"` // extra KEY=VALUE entries for the subprocess
}

type ServeConfig struct {
	Port int `yaml:"port,omitempty"`
}

type WebConfig struct {
	Port int `yaml:"port,omitempty"`
}

type HistoryConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

type ScheduleConfig struct {
	Path string `yaml:"path,omitempty"`
}

type PlatformConfig struct {
	Slack    SlackConfig    `yaml:"slack,omitempty"`
	Telegram TelegramConfig `yaml:"telegram,omitempty"`
	Discord  DiscordConfig  `yaml:"discord,omitempty"`
	Feishu   FeishuConfig   `yaml:"feishu,omitempty"`
	DingTalk DingTalkConfig `yaml:"dingtalk,omitempty"`
}

type SlackConfig struct {
	BotToken string `yaml:"bot_token,omitempty"`
	AppToken string `yaml:"app_token,omitempty"`
}

type TelegramConfig struct {
	Token string `yaml:"token,omitempty"`
}

type DiscordConfig struct {
	Token string `yaml:"token,omitempty"`
}

type FeishuConfig struct {
	AppID     string `yaml:"app_id,omitempty"`
	AppSecret string `yaml:"app_secret,omitempty"`
}

type DingTalkConfig struct {
	ClientID     string `yaml:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider: "gemini",
		},
		MCP: MCPConfig{
			Command: "python",
			Args:    []string{"server.py"},
		},
		Serve: ServeConfig{
			Port: 8000,
		},
		Web: WebConfig{
			Port: 18080,
		},
		History: HistoryConfig{
			Path: filepath.Join(ConfigDir(), "history.db"),
		},
		Schedule: ScheduleConfig{
			Path: filepath.Join(ConfigDir(), "jobs.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".sqlpal")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads a config file, returning defaults when it does not exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	if err := os.MkdirAll(ConfigDir(), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
