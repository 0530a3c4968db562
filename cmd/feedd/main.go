package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/broadcast"
	"github.com/RojasCortes/tickerfeed/internal/cache"
	"github.com/RojasCortes/tickerfeed/internal/config"
	"github.com/RojasCortes/tickerfeed/internal/poller"
	"github.com/RojasCortes/tickerfeed/internal/server"
	"github.com/RojasCortes/tickerfeed/internal/upstream"
	"github.com/RojasCortes/tickerfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedd.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"upstream_url", cfg.Upstream.BaseURL,
		"symbols", len(cfg.Symbols),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create upstream client
	client := upstream.NewClient(
		upstream.WithBaseURL(cfg.Upstream.BaseURL),
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithLogger(logger),
	)

	// Snapshot store and fan-out
	store := cache.New()
	broadcaster := broadcast.New(cfg.Broadcast.BufferSize, logger)
	defer broadcaster.Close()

	// Poller drives the fetch loop and pushes each snapshot to subscribers
	p := poller.New(poller.Config{
		Symbols:          cfg.Symbols,
		Interval:         cfg.Poller.Interval,
		Timeout:          cfg.Upstream.Timeout,
		FailureThreshold: cfg.Poller.FailureThreshold,
	}, client, store, broadcaster, logger)

	if err := p.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		p.Stop(shutdownCtx)
	}()

	// HTTP surface: push streams, pull snapshot, klines, health
	srv := server.New(cfg.Server, cfg.Poller.Interval, store, broadcaster, p, client, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start http server", "error", err)
		os.Exit(1)
	}

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"addr", cfg.Server.Addr,
		"poll_interval", cfg.Poller.Interval,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)

	logger.Info("feedd stopped")
}
