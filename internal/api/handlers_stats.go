package api

import "net/http"

// handleStats returns the aggregate summary over the record set.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.builder.Stats(r.Context())
	if err != nil {
		jsonError(w, "failed to compute stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// handleFetchStats returns remote fetch latency aggregates; only
// meaningful when the server reads through the remote client.
func (s *Server) handleFetchStats(w http.ResponseWriter, r *http.Request) {
	if s.fetch == nil {
		jsonError(w, "fetch stats unavailable for local sources", http.StatusNotFound)
		return
	}
	writeJSON(w, s.fetch.Snapshot())
}
