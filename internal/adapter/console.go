package adapter

import (
	"context"
	"log/slog"

	"github.com/plandeck/nudge/internal/event"
)

// Console writes notifications to the structured log. It needs no
// configuration and never fails.
type Console struct {
	logger *slog.Logger
}

// NewConsole creates a Console adapter.
func NewConsole(logger *slog.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Name() string { return "console" }

func (c *Console) IsConfigured() bool { return true }

func (c *Console) Deliver(_ context.Context, ev *event.Notification) Result {
	c.logger.Info("notification",
		slog.String("event", ev.EventType),
		slog.String("correlation_id", ev.CorrelationID),
		slog.String("user_id", ev.UserID),
		slog.String("plan_id", ev.Plan.ID),
		slog.String("message", ev.Message),
	)
	return success(c.Name())
}
