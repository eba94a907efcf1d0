package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kayz/sqlpal/internal/webui"
)

var webPort int

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the browser chat UI",
	Run:   runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)
	webCmd.Flags().IntVar(&webPort, "port", 0, "Web UI listen port (default from config, 18080)")
}

func runWeb(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if webPort == 0 {
		webPort = cfg.Web.Port
	}

	pipe := newPipeline(cfg)
	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	server := webui.NewServer(pipe, webOpener(mcpConfig(cfg)), store)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", webPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Web UI listening on http://127.0.0.1:%d", webPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Web UI server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}
