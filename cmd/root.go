package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/sqlpal/internal/ai"
	"github.com/kayz/sqlpal/internal/bridge"
	"github.com/kayz/sqlpal/internal/config"
	"github.com/kayz/sqlpal/internal/history"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/mcpsql"
	"github.com/kayz/sqlpal/internal/pipeline"
	"github.com/kayz/sqlpal/internal/webui"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "sqlpal",
	Short: "Natural language SQL assistant",
	Long: `sqlpal answers plain-language questions about a SQL database.
Questions are translated to SQL, executed through a SQL tool server,
and the results are summarized back in plain language.

Modes:
  sqlpal          Interactive REPL (default)
  sqlpal repl     Interactive REPL
  sqlpal serve    HTTP API server
  sqlpal web      Browser chat UI
  sqlpal bridge   Chat platform bridge (Slack, Telegram, Discord, Feishu, DingTalk)
  sqlpal ask      Answer a single question and exit`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Run: runRepl,
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		name := logLevel
		if !rootCmd.PersistentFlags().Changed("log") {
			if cfg, err := config.Load(); err == nil && cfg.Logging.Level != "" {
				name = cfg.Logging.Level
			}
		}
		level, err := logger.ParseLevel(name)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal, panic")
}

// loadConfig reads the config file, falling back to defaults so commands can
// still run from flags and environment variables alone.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func newProvider(cfg *config.Config) ai.Provider {
	provider, err := ai.New(cfg.AI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return provider
}

func mcpConfig(cfg *config.Config) mcpsql.Config {
	return mcpsql.Config{
		Command: cfg.MCP.Command,
		Args:    cfg.MCP.Args,
		Env:     cfg.MCP.Env,
	}
}

// openHistory opens the run audit log, or returns nil when disabled or broken.
func openHistory(cfg *config.Config) *history.Store {
	if cfg.History.Disabled {
		return nil
	}
	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		logger.Warn("history disabled: %v", err)
		return nil
	}
	return store
}

// bridgeOpener spawns a fresh tool-server subprocess per question.
func bridgeOpener(mcpCfg mcpsql.Config) bridge.SessionOpener {
	return func(ctx context.Context) (bridge.ToolSession, error) {
		return mcpsql.Connect(ctx, mcpCfg)
	}
}

func webOpener(mcpCfg mcpsql.Config) webui.SessionOpener {
	return func(ctx context.Context) (webui.ToolSession, error) {
		return mcpsql.Connect(ctx, mcpCfg)
	}
}

func newPipeline(cfg *config.Config) *pipeline.Pipeline {
	return pipeline.New(newProvider(cfg))
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
