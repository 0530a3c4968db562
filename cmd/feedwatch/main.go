package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RojasCortes/tickerfeed/internal/config"
	"github.com/RojasCortes/tickerfeed/internal/stream"
	"github.com/RojasCortes/tickerfeed/internal/version"
)

// feedwatch is a console consumer: it runs the client stream controller
// against a feed instance and prints every snapshot it receives, along with
// state transitions. Useful for watching a feed degrade and recover.
func main() {
	baseURL := flag.String("url", "http://localhost:8090", "feed base URL")
	transportName := flag.String("transport", "sse", "push transport: sse or ws")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedwatch",
		"version", version.Version,
		"commit", version.Commit,
		"url", *baseURL,
		"transport", *transportName,
	)

	var transport stream.Transport
	switch *transportName {
	case "sse":
		transport = &stream.SSETransport{URL: *baseURL + "/api/stream"}
	case "ws":
		wsBase := "ws" + strings.TrimPrefix(*baseURL, "http")
		transport = &stream.WSTransport{URL: wsBase + "/api/stream/ws"}
	default:
		logger.Error("unknown transport", "transport", *transportName)
		os.Exit(1)
	}

	puller := &stream.PullClient{URL: *baseURL + "/api/tickers"}

	cfg := config.ClientConfig{
		RetryCeiling:     config.DefaultRetryCeiling,
		BackoffMin:       config.DefaultBackoffMin,
		BackoffMax:       config.DefaultBackoffMax,
		PollInterval:     config.DefaultClientPoll,
		UpgradeInterval:  config.DefaultUpgradeInterval,
		PullFailureLimit: config.DefaultPullFailureLimit,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	controller := stream.NewController(cfg, transport, puller, logger)
	if err := controller.Start(ctx); err != nil {
		logger.Error("failed to start controller", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Print each snapshot as it arrives.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-controller.Updates():
				printSnapshot(controller)
			}
		}
	})

	// Periodic status line so degraded states are visible even when no
	// data is flowing.
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := controller.Stats()
				logger.Info("controller status",
					"state", stats.State.String(),
					"reconnects", stats.Reconnects,
					"pull_failures", stats.PullFailures,
					"last_update", stats.LastUpdate.Format(time.RFC3339),
				)
			}
		}
	})

	g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	controller.Stop(shutdownCtx)

	logger.Info("feedwatch stopped")
}

func printSnapshot(controller *stream.Controller) {
	records := controller.Snapshot()
	fmt.Printf("--- %s (%d symbols, %s)\n",
		time.Now().Format("15:04:05"),
		len(records),
		controller.State(),
	)
	for _, r := range records {
		fmt.Printf("  %-12s %14s  %7s%%  vol %s\n",
			r.Symbol,
			r.Price.StringFixed(2),
			r.ChangePercent24h.StringFixed(2),
			r.Volume24h.String(),
		)
	}
}
