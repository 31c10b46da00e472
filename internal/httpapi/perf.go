package httpapi

import "net/http"

// handlePerfLatency reports the rolling percentile snapshot of packet-stage
// latencies (offer-to-post, translate round trip) tracked in metrics.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.SnapshotPacketStages())
}

// handlePerfLatencyReset clears the rolling window, for load tests that want
// a clean slate between runs.
func (s *Server) handlePerfLatencyReset(w http.ResponseWriter, _ *http.Request) {
	if s.metrics != nil {
		s.metrics.ResetPacketStages()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
