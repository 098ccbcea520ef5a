package api

import (
	"net/http"
)

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":     s.cfg.StoreBackend,
		"queue_depth": s.orchestrator.QueueDepth(),
		"writes":      s.orchestrator.Stats().Snapshot(),
	})
}
