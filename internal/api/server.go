// Package api implements the REST handlers for the delivery service:
// the agent runtime callback endpoint, the delivery log, and the adapter
// inventory.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plandeck/nudge/internal/adapter"
	"github.com/plandeck/nudge/internal/dispatch"
	"github.com/plandeck/nudge/internal/service"
	"github.com/plandeck/nudge/internal/storage"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	callbackSvc *service.AgentCallbackService
	dispatcher  *dispatch.Dispatcher
	registry    *adapter.Registry
	deliveries  storage.DeliveryStore
	logger      *slog.Logger
}

// New creates a new API Server backed by the provided services. deliveries
// may be nil when no database is configured; the delivery log endpoint then
// returns 503.
func New(callbackSvc *service.AgentCallbackService, dispatcher *dispatch.Dispatcher, registry *adapter.Registry, deliveries storage.DeliveryStore, logger *slog.Logger) *Server {
	return &Server{
		callbackSvc: callbackSvc,
		dispatcher:  dispatcher,
		registry:    registry,
		deliveries:  deliveries,
		logger:      logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Agent runtime callback
	r.Post("/agent-callback", s.handleAgentCallback)

	// Delivery log
	r.Get("/deliveries", s.handleListDeliveries)

	// Adapter inventory and test delivery
	r.Get("/adapters", s.handleListAdapters)
	r.Post("/notifications/test", s.handleTestNotification)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
