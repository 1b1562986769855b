package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plandeck/nudge/internal/api"
	"github.com/plandeck/nudge/internal/build"
	"github.com/plandeck/nudge/internal/channelbus"
	"github.com/plandeck/nudge/internal/config"
	"github.com/plandeck/nudge/internal/dispatch"
	"github.com/plandeck/nudge/internal/event"
	"github.com/plandeck/nudge/internal/logger"
	"github.com/plandeck/nudge/internal/orchestrator"
	"github.com/plandeck/nudge/internal/redelivery"
	"github.com/plandeck/nudge/internal/server"
	"github.com/plandeck/nudge/internal/service"
	"github.com/plandeck/nudge/internal/storage"
)

// NewServeCmd returns the "serve" subcommand that starts the API server and
// the in-process dispatch pipeline.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and dispatch pipeline",
		Long: "Start the nudge HTTP server. Inbound agent callbacks, the delivery log,\n" +
			"and the adapter inventory are served here; deliveries run through the\n" +
			"workflow engine when one is configured, locally otherwise.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	return cmd
}

func runServe(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.New(cfg.LogFile, cfg.SlogLevel())
	log.Info("nudge starting",
		slog.Int("port", cfg.Port),
		slog.String("task_queue", cfg.TaskQueue),
		slog.String("version", build.Version),
	)

	bus := channelbus.New(log)
	var deliveryStore storage.DeliveryStore
	var taskStore service.TaskStore

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
		taskStore = storage.NewPostgresTaskStore(pool)
	} else {
		log.Warn("DATABASE_URL not set; channel mirroring, delivery log, and task updates disabled")
		taskStore = noopTaskStore{}
	}

	registry := newAdapterRegistry(log)
	dispatcher := dispatch.New(registry, bus, deliveryStore, log)

	temporalClient, err := orchestrator.Dial(cfg.TemporalAddress, cfg.TemporalNamespace, log)
	if err != nil {
		log.Warn("workflow engine unreachable, using local delivery", "error", err)
		temporalClient = nil
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	bridge := orchestrator.NewBridge(temporalClient, cfg.TaskQueue, log)
	bridge.RegisterFallback(orchestrator.EventNotificationSend, func(ctx context.Context, payload any) {
		if ev, ok := payload.(*event.Notification); ok {
			dispatcher.DeliverToAll(ctx, ev)
		}
	})

	if deliveryStore != nil && cfg.RedeliveryInterval > 0 {
		sweeper, err := redelivery.New(redelivery.Config{
			Store:       deliveryStore,
			Registry:    registry,
			Logger:      log,
			Interval:    time.Duration(cfg.RedeliveryInterval) * time.Minute,
			MaxAttempts: cfg.RedeliveryMaxAttempts,
		})
		if err != nil {
			return fmt.Errorf("creating redelivery sweeper: %w", err)
		}
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("starting redelivery sweeper: %w", err)
		}
		defer func() { _ = sweeper.Stop() }()
	}

	callbackSvc := service.NewAgentCallbackService(taskStore, bridge, log)

	apiSrv := api.New(callbackSvc, dispatcher, registry, deliveryStore, log)
	srv := server.New(apiSrv, cfg.Port, log)

	log.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return srv.Run(ctx)
}

// noopTaskStore satisfies the callback service when no database is
// configured. Task completion is then the planning service's problem; nudge
// still emits the response event.
type noopTaskStore struct{}

func (noopTaskStore) CompleteTask(context.Context, string) error { return nil }

func (noopTaskStore) AppendProgress(context.Context, string, string) error { return nil }
