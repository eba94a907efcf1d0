package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs",
	Run:   runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.History.Disabled {
		fmt.Fprintln(os.Stderr, "History is disabled in the config")
		os.Exit(1)
	}

	store := openHistory(cfg)
	if store == nil {
		fmt.Fprintln(os.Stderr, "Error: failed to open history store")
		os.Exit(1)
	}
	defer store.Close()

	entries, err := store.Recent(historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tSTATUS\tROWS\tMS\tQUESTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Source, e.Status, e.RowCount, e.Duration, truncate(e.Question, 60))
	}
	w.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
