package viewer

import (
	"encoding/json"
	"net/http"
	"time"

	"lootwatch/internal/logging"
	"lootwatch/internal/workflow"
)

// ItemCounts mirrors store.Stats for JSON clients.
type ItemCounts struct {
	Total           int `json:"total"`
	PendingRender   int `json:"pending_render"`
	PendingDelivery int `json:"pending_delivery"`
	Delivered       int `json:"delivered"`
	Suppressed      int `json:"suppressed"`
	Exhausted       int `json:"exhausted"`
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Workflow         *workflow.StatusSummary `json:"workflow,omitempty"`
	Items            ItemCounts              `json:"items"`
	LatestDiscovered time.Time               `json:"latest_discovered,omitzero"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), s.maxAttempts)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	resp := StatusResponse{Items: ItemCounts(stats)}
	if latest, err := s.store.Latest(r.Context(), 0); err == nil {
		resp.LatestDiscovered = latest.DiscoveredAt
	}
	if s.status != nil {
		summary := s.status()
		resp.Workflow = &summary
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}
