package api

import "net/http"

// ─── GET /api/situations ─────────────────────────────────────────────────────

// handleSituations serves the static situations/triage-question seed the
// frontend uses to render categories. The seed is loaded once at startup; an
// unconfigured or missing seed serves an empty list rather than an error.
func (s *Server) handleSituations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(s.situations) == 0 {
		_, _ = w.Write([]byte("[]"))
		return
	}
	_, _ = w.Write(s.situations)
}
