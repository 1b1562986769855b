package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/plandeck/nudge/internal/event"
)

// adapterStatus describes one registered adapter for the inventory endpoint.
type adapterStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// handleListAdapters returns the registered adapters and whether each one
// currently has the configuration it needs to deliver.
func (s *Server) handleListAdapters(w http.ResponseWriter, _ *http.Request) {
	adapters := s.registry.Adapters()
	statuses := make([]adapterStatus, 0, len(adapters))
	for _, a := range adapters {
		statuses = append(statuses, adapterStatus{Name: a.Name(), Configured: a.IsConfigured()})
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleTestNotification fans a synthetic notification out to every
// registered adapter and returns the per-adapter results.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	ev := &event.Notification{
		EventType:     event.TypeStatusChanged,
		CorrelationID: uuid.New().String(),
		Actor:         event.Actor{Name: "operator", Type: event.ActorHuman},
		Message:       "Test notification sent at " + time.Now().Format(time.RFC3339),
	}

	results := s.dispatcher.DeliverToAll(r.Context(), ev)
	writeJSON(w, http.StatusOK, results)
}
