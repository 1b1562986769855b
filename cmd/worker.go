package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plandeck/nudge/internal/channelbus"
	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/dispatch"
	"github.com/plandeck/nudge/internal/logger"
	"github.com/plandeck/nudge/internal/orchestrator"
	"github.com/plandeck/nudge/internal/storage"
)

// NewWorkerCmd returns the "worker" subcommand that runs the workflow worker
// process. The worker hosts the notification workflows and their activities;
// deliveries initiated through the engine execute here.
func NewWorkerCmd(cfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the workflow worker",
		Long: "Start the worker process that executes notification workflows from the\n" +
			"task queue. Requires a reachable workflow engine.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWorker(cfg)
		},
	}
}

func runWorker(cfg *config.AppConfig) error {
	if cfg.TemporalAddress == "" {
		return fmt.Errorf("TEMPORAL_ADDRESS is required for the worker")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.New(cfg.LogFile, cfg.SlogLevel())
	log.Info("nudge worker starting",
		slog.String("engine", cfg.TemporalAddress),
		slog.String("task_queue", cfg.TaskQueue),
	)

	bus := channelbus.New(log)
	var deliveryStore storage.DeliveryStore

	if cfg.DatabaseURL != "" {
		if err := bus.Init(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("initializing channel bus: %w", err)
		}
		defer func() { _ = bus.Close(context.Background()) }()

		pool, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer pool.Close()
		deliveryStore = storage.NewPostgresDeliveryStore(pool)
	}

	registry := newAdapterRegistry(log)
	dispatcher := dispatch.New(registry, bus, deliveryStore, log)

	temporalClient, err := orchestrator.Dial(cfg.TemporalAddress, cfg.TemporalNamespace, log)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	activities := orchestrator.NewActivities(dispatcher, config.LoadAdapterSettings)
	w := orchestrator.NewWorker(temporalClient, cfg.TaskQueue, activities)

	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()

	log.Info("worker ready")
	return w.Run(interrupt)
}
