package api

import (
	"net/http"
	"strconv"
)

// handleListDeliveries returns recent delivery log entries.
// Accepts an optional ?limit=N query parameter (default 50).
func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, "delivery log not configured")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.deliveries.ListDeliveries(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
