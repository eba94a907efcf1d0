package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/mcpsql"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	pipe := newPipeline(cfg)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Error: empty question")
		os.Exit(1)
	}

	ctx := context.Background()
	session, err := mcpsql.Connect(ctx, mcpConfig(cfg))
	if err != nil {
		logger.Fatal("failed to start tool session: %v", err)
	}
	defer session.Close()

	schema, err := pipe.FetchSchema(ctx, session)
	if err != nil {
		logger.Fatal("failed to fetch schema: %v", err)
	}

	answerOne(ctx, pipe, session, store, "ask", schema, question)
}
