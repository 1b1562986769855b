package cmd

import (
	"log/slog"

	"github.com/plandeck/nudge/internal/adapter"
	"github.com/plandeck/nudge/internal/config"
)

// newAdapterRegistry builds the standard adapter set. Adapter credentials are
// re-read from the environment on every delivery, so an unconfigured adapter
// registered here starts delivering as soon as its settings appear.
func newAdapterRegistry(log *slog.Logger) *adapter.Registry {
	registry := adapter.NewRegistry()
	registry.Register(adapter.NewConsole(log))
	registry.Register(adapter.Wrap(adapter.NewWebhook(config.LoadAdapterSettings), adapter.DefaultPolicy))
	registry.Register(adapter.Wrap(adapter.NewTelegram(config.LoadAdapterSettings), adapter.DefaultPolicy))
	registry.Register(adapter.NewEmail(config.LoadAdapterSettings))
	registry.Register(adapter.NewAgentCall(config.LoadAdapterSettings))
	return registry
}
