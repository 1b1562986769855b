// Package adapter defines the delivery adapter contract and the concrete
// adapters for each destination (console, webhook, Telegram, email, agent
// callback).
//
// Adapters never let expected failures escape as errors: missing
// configuration, non-2xx responses, and malformed targets all surface as a
// Result with Success=false and a human-readable Reason. Only programming
// errors may panic, and the dispatcher converts those into failure results
// at its boundary.
package adapter

import (
	"context"

	"github.com/plandeck/nudge/internal/event"
)

// Result is the outcome of one adapter's delivery attempt. A failing adapter
// still produces an entry; results are never silently dropped.
type Result struct {
	Adapter    string `json:"adapter"`
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// Adapter is a pluggable delivery mechanism for one destination.
type Adapter interface {
	// Name returns the adapter identifier ("console", "webhook", ...).
	Name() string
	// IsConfigured reports whether the adapter's required credentials are
	// present. Configuration is re-read on every call so changes take effect
	// without a restart.
	IsConfigured() bool
	// Deliver sends the notification. Expected failures are reported through
	// the Result, never thrown.
	Deliver(ctx context.Context, ev *event.Notification) Result
}

// failure builds a failed Result for the named adapter.
func failure(name, reason string) Result {
	return Result{Adapter: name, Success: false, Reason: reason}
}

// success builds a successful Result for the named adapter.
func success(name string) Result {
	return Result{Adapter: name, Success: true}
}
