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

	"github.com/kayz/sqlpal/internal/bridge"
	"github.com/kayz/sqlpal/internal/httpapi"
	"github.com/kayz/sqlpal/internal/logger"
	"github.com/kayz/sqlpal/internal/mcpsql"
	"github.com/kayz/sqlpal/internal/schedule"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server. The tool session is established in the
background so the server accepts requests immediately; endpoints that need
the session return 503 until it is ready.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "API listen port (default from config, 8000)")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if servePort == 0 {
		servePort = cfg.Serve.Port
	}

	pipe := newPipeline(cfg)
	mcpCfg := mcpConfig(cfg)

	store := openHistory(cfg)
	if store != nil {
		defer store.Close()
	}

	// Shared session for API requests, started without blocking the server.
	holder := mcpsql.NewHolder(mcpCfg)

	// Standing questions run on their own per-question sessions.
	var scheduler *schedule.Scheduler
	schedStore, err := schedule.NewStore(cfg.Schedule.Path)
	if err != nil {
		logger.Warn("scheduler disabled: %v", err)
	} else {
		answerer := bridge.NewAnswerer(pipe, bridgeOpener(mcpCfg), store)
		scheduler = schedule.NewScheduler(schedStore, answerer, nil)
		if err := scheduler.Start(); err != nil {
			logger.Warn("scheduler failed to start: %v", err)
			scheduler = nil
		}
	}

	server := httpapi.NewServer(pipe, httpapi.HolderSessions(holder), store, scheduler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", servePort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("API listening on http://127.0.0.1:%d", servePort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	if scheduler != nil {
		_ = scheduler.Stop()
	}
	_ = holder.Shutdown(ctx)
}
