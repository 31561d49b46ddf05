package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/voltahq/volta/adapter/api"
	"github.com/voltahq/volta/internal/app"
	energyCommands "github.com/voltahq/volta/internal/energy/application/commands"
	"github.com/voltahq/volta/pkg/config"
	"github.com/voltahq/volta/pkg/observability"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "volta",
		Short: "Volta - energy-aware task scheduler",
		Long: `Volta schedules tasks where predicted energy matches their
cognitive demand, learning each user's daily rhythm from check-ins.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd(), reconcileCmd(), refreshPatternsCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.LoggerFromEnv()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			container, err := app.NewContainer(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			if cfg.OutboxProcessorEnabled {
				container.OutboxProcessor.Start(ctx)
			} else {
				logger.Info("outbox processor disabled")
			}

			// Repair task/mirror drift left behind by a previous crash
			// before accepting traffic.
			if repaired, err := container.Reconciler.Run(ctx); err != nil {
				logger.Warn("startup reconciliation failed", "error", err)
			} else if repaired > 0 {
				logger.Info("startup reconciliation repaired items", "count", repaired)
			}

			handler := api.NewHandler(api.Deps{
				Tokens:              container.Tokens,
				Register:            container.RegisterUserHandler,
				Login:               container.LoginHandler,
				Refresh:             container.RefreshHandler,
				UpdateSleepSchedule: container.UpdateSleepScheduleHandler,
				CreateTask:          container.CreateTaskHandler,
				UpdateTask:          container.UpdateTaskHandler,
				DeleteTask:          container.DeleteTaskHandler,
				RescheduleTask:      container.RescheduleTaskHandler,
				AddScheduleItem:     container.AddScheduleItemHandler,
				RemoveScheduleItem:  container.RemoveScheduleItemHandler,
				ListTasks:           container.ListTasksHandler,
				GetTask:             container.GetTaskHandler,
				ListSchedule:        container.ListScheduleHandler,
				RecordSample:        container.RecordSampleHandler,
				DayForecast:         container.DayForecastHandler,
				Patterns:            container.PatternsHandler,
			}, logger)

			serverCfg := api.DefaultServerConfig()
			serverCfg.Addr = cfg.HTTPAddr
			server := api.NewServer(serverCfg, handler, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair drift between tasks and their schedule mirrors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.LoggerFromEnv()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			container, err := app.NewContainer(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			repaired, err := container.Reconciler.Run(ctx)
			if err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}

			fmt.Printf("reconciliation complete: %d item(s) repaired\n", repaired)
			return nil
		},
	}
}

func refreshPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-patterns <user-id>",
		Short: "Recompute a user's historical energy patterns from their samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			ctx := cmd.Context()
			logger := observability.LoggerFromEnv()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			container, err := app.NewContainer(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer container.Close()

			err = container.UpdatePatternsHandler.Handle(ctx, energyCommands.UpdatePatternsCommand{UserID: userID})
			if err != nil {
				return fmt.Errorf("pattern refresh failed: %w", err)
			}

			fmt.Println("patterns refreshed")
			return nil
		},
	}
}
