// Package redelivery periodically retries failed deliveries from the
// delivery log. This is the only retry loop in the system: the dispatcher
// never retries within a call, and adapter wrappers only retry transient
// errors within one attempt window.
package redelivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/plandeck/nudge/internal/adapter"
	"github.com/plandeck/nudge/internal/event"
	"github.com/plandeck/nudge/internal/storage"
)

// retryWindow bounds how old a failed delivery may be and still get retried.
const retryWindow = 24 * time.Hour

// Config holds the sweeper configuration.
type Config struct {
	Store       storage.DeliveryStore
	Registry    *adapter.Registry
	Logger      *slog.Logger
	Interval    time.Duration
	MaxAttempts int
}

// Sweeper re-dispatches recent failed deliveries on a fixed interval.
type Sweeper struct {
	cron        gocron.Scheduler
	store       storage.DeliveryStore
	registry    *adapter.Registry
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
}

// New creates a Sweeper.
func New(cfg Config) (*Sweeper, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Sweeper{
		cron:        cron,
		store:       cfg.Store,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
		interval:    cfg.Interval,
		maxAttempts: maxAttempts,
	}, nil
}

// Start schedules the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("redelivery sweeper started",
		"interval", s.interval, "max_attempts", s.maxAttempts)
	return nil
}

// Stop shuts down the scheduler.
func (s *Sweeper) Stop() error {
	return s.cron.Shutdown()
}

// sweep retries every eligible failed delivery once and records the outcome.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	since := time.Now().Add(-retryWindow)
	entries, err := s.store.ListFailed(ctx, since, s.maxAttempts, 100)
	if err != nil {
		s.logger.Warn("listing failed deliveries", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	adapters := make(map[string]adapter.Adapter)
	for _, a := range s.registry.Adapters() {
		adapters[a.Name()] = a
	}

	for _, entry := range entries {
		s.retryOne(ctx, entry, adapters)
	}
}

// retryOne re-delivers a single failed entry through its original adapter.
func (s *Sweeper) retryOne(ctx context.Context, entry storage.DeliveryEntry, adapters map[string]adapter.Adapter) {
	a, ok := adapters[entry.Adapter]
	if !ok {
		// Adapter was removed since the failure; count the attempt so the
		// entry ages out instead of being scanned forever.
		if err := s.store.MarkRetried(ctx, entry.ID, false, "adapter no longer registered", 0); err != nil {
			s.logger.Warn("marking orphaned delivery", "id", entry.ID, "error", err)
		}
		return
	}

	var ev event.Notification
	if err := json.Unmarshal(entry.Payload, &ev); err != nil {
		if err := s.store.MarkRetried(ctx, entry.ID, false, "unreadable payload", 0); err != nil {
			s.logger.Warn("marking unreadable delivery", "id", entry.ID, "error", err)
		}
		return
	}

	res := a.Deliver(ctx, &ev)
	if err := s.store.MarkRetried(ctx, entry.ID, res.Success, res.Reason, res.StatusCode); err != nil {
		s.logger.Warn("recording redelivery", "id", entry.ID, "error", err)
		return
	}

	s.logger.Info("redelivery attempted",
		"id", entry.ID, "adapter", entry.Adapter,
		"event", entry.EventType, "success", res.Success)
}
