package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plandeck/nudge/internal/service"
)

// handleAgentCallback accepts a completion callback from the agent runtime.
// Callbacks for sessions in a non-terminal state are acknowledged and ignored.
func (s *Server) handleAgentCallback(w http.ResponseWriter, r *http.Request) {
	var cb service.AgentCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	if err := s.callbackSvc.Handle(r.Context(), cb); err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		var nf *service.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, nf.Error())
			return
		}
		s.logger.Error("handling agent callback", "session_id", cb.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process callback")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
