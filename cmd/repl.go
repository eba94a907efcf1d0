package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayz/sqlpal/internal/history"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/mcpsql"
	"github.com/kayz/sqlpal/internal/pipeline"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive question loop",
	Long: `Start an interactive loop that answers questions against the
configured database. Type 'exit', 'quit' or 'q' (or an empty line) to leave.`,
	Run: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	pipe := newPipeline(cfg)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	ctx := context.Background()

	session, err := mcpsql.Connect(ctx, mcpConfig(cfg))
	if err != nil {
		logger.Fatal("failed to start tool session: %v", err)
	}
	defer session.Close()

	// The schema is fetched once and reused for every question.
	schema, err := pipe.FetchSchema(ctx, session)
	if err != nil {
		logger.Fatal("failed to fetch schema: %v", err)
	}
	fmt.Println("Connected. Schema loaded.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nAsk a question (or 'exit' to quit): ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" || question == "exit" || question == "quit" || question == "q" {
			break
		}

		answerOne(ctx, pipe, session, store, "repl", schema, question)
	}
	fmt.Println("Bye.")
}

// answerOne runs one question through the pipeline, printing each stage as it
// completes. Failures end the question, not the loop.
func answerOne(ctx context.Context, pipe *pipeline.Pipeline, session pipeline.ToolSession, store *history.Store, source, schema, question string) {
	start := time.Now()

	sql, err := pipe.Translate(ctx, question, schema)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		record(store, source, question, "", history.StatusFailed, 0, start)
		return
	}
	fmt.Printf("\nGenerated SQL:\n%s\n", sql)

	result, err := pipe.Execute(ctx, session, sql)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		record(store, source, question, sql, history.StatusFailed, 0, start)
		return
	}

	if result.Failed {
		// Tool server rejected the query; show its message and move on.
		fmt.Printf("\n%s\n", result.Text)
		record(store, source, question, sql, history.StatusRejected, 0, start)
		return
	}

	rows := pipeline.RowCount(result.Text)
	fmt.Printf("\nResults:\n%s\n", pipeline.Preview(result.Text))
	fmt.Printf("Total rows returned: %d\n", rows)

	summary, err := pipe.Summarize(ctx, question, sql, result.Text)
	if err != nil {
		logger.Warn("%v", err)
		summary = pipeline.SummaryFallback
	}
	fmt.Printf("\nSummary:\n%s\n", summary)

	record(store, source, question, sql, history.StatusOK, rows, start)
}

func record(store *history.Store, source, question, sql, status string, rows int, start time.Time) {
	if store == nil {
		return
	}
	entry := history.Entry{
		Source:   source,
		Question: question,
		SQL:      sql,
		Status:   status,
		RowCount: rows,
		Duration: time.Since(start).Milliseconds(),
	}
	if err := store.Record(entry); err != nil {
		logger.Warn("failed to record run: %v", err)
	}
}
