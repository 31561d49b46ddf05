package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voltahq/volta/internal/app"
	"github.com/voltahq/volta/pkg/config"
	"github.com/voltahq/volta/pkg/observability"
)

// The worker owns the background loops: publishing outbox messages to
// the broker and warning users about deadlines inside the next day.
func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting volta worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	logger.Info("starting outbox processor",
		"poll_interval", cfg.OutboxPollInterval,
		"batch_size", cfg.OutboxBatchSize,
		"max_retries", cfg.OutboxMaxRetries,
	)
	container.OutboxProcessor.Start(ctx)

	sweepTicker := time.NewTicker(cfg.DeadlineSweepInterval)
	defer sweepTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweepTicker.C:
				warned, err := container.DeadlineSweeper.Sweep(ctx)
				if err != nil {
					logger.Error("deadline sweep failed", "error", err)
					continue
				}
				if warned > 0 {
					logger.Info("deadline sweep completed", "warnings", warned)
				}
			}
		}
	}()

	if cfg.WorkerHealthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server failed", "error", err)
			}
		}()

		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			_ = healthSrv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	logger.Info("volta worker stopped")
}
