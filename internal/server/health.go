package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is the operator-facing status payload.
type healthResponse struct {
	Status            string `json:"status"`
	Subscribers       int    `json:"subscribers"`
	UpstreamConnected bool   `json:"upstreamConnected"`
	CachedSymbols     int    `json:"cachedSymbols"`
	RequestsLastMin   int    `json:"requestsLastMinute"`
	StreamConnects    int64  `json:"streamConnectsTotal"`
	Published         int64  `json:"publishedTotal"`
	DroppedSlow       int64  `json:"droppedSlowTotal"`
	FetchFailures     int64  `json:"fetchFailuresTotal"`
	LastFetch         string `json:"lastFetch,omitempty"`
}

// handleHealth reports feed status for the operator UI.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	bstats := s.broadcaster.Stats()

	resp := healthResponse{
		Status:          "ok",
		Subscribers:     bstats.Subscribers,
		CachedSymbols:   s.cache.Len(),
		RequestsLastMin: s.requests.Count(time.Now()),
		StreamConnects:  bstats.Registrations,
		Published:       bstats.Published,
		DroppedSlow:     bstats.Dropped,
	}

	if s.poller != nil {
		pstats := s.poller.Stats()
		resp.UpstreamConnected = s.poller.Healthy()
		resp.FetchFailures = pstats.Failures
		if !pstats.LastSuccessAt.IsZero() {
			resp.LastFetch = pstats.LastSuccessAt.UTC().Format(time.RFC3339)
		}
	}

	if !resp.UpstreamConnected || s.cache.Len() == 0 {
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
