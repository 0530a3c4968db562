package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// handleStream serves the SSE push stream. Each event carries the full
// current snapshot as a JSON list; a comment heartbeat keeps intermediaries
// from timing the connection out.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.broadcaster.Register()
	defer s.broadcaster.Unregister(sub)

	s.logger.Debug("sse session opened", "id", sub.ID, "remote", r.RemoteAddr)
	defer s.logger.Debug("sse session closed", "id", sub.ID)

	// New sessions get the last known-good snapshot immediately so clients
	// never start blank.
	if records := s.cache.Records(); len(records) > 0 {
		if err := s.writeEvent(w, flusher, records); err != nil {
			return
		}
	}

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case records, ok := <-sub.C():
			if !ok {
				// Dropped by the broadcaster or shutting down.
				return
			}
			if err := s.writeEvent(w, flusher, records); err != nil {
				return
			}
		}
	}
}

// writeEvent frames one snapshot as an SSE event. A marshal failure drops
// that message only; a transport write failure ends the session.
func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, records []model.TickerRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		s.logger.Warn("failed to marshal snapshot, dropping message", "error", err)
		return nil
	}

	if _, err := fmt.Fprintf(w, "event: tickers\ndata: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
