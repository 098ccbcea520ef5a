package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/statchunk/internal/api"
	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/config"
	"github.com/dgallion1/statchunk/internal/index"
	"github.com/dgallion1/statchunk/internal/pipeline"
	"github.com/dgallion1/statchunk/internal/stats"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builder, err := chunker.New(cfg.Chunker())
	if err != nil {
		log.Error("invalid chunk bounds", "error", err)
		os.Exit(1)
	}

	// Initialize the index backend.
	idx, err := index.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open index", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, idx, builder, stats.NewWindow(cfg.StatsWindow), log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, builder, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if err := idx.Close(); err != nil {
			log.Error("failed to close index", "error", err)
		}
	}()

	log.Info("starting statchunk",
		"port", cfg.Port,
		"backend", cfg.StoreBackend,
		"min_tokens", cfg.MinTokens,
		"max_tokens", cfg.MaxTokens,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
