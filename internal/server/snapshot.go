package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/upstream"
)

// DefaultKlineInterval is used when the query omits an interval.
const DefaultKlineInterval = "1h"

// handleTickers serves the pull snapshot: the same JSON list shape as the
// push payload. Data past twice the poll interval is flagged stale but still
// served — last known-good beats no data. Responses are cacheable for a
// short window to absorb bursts of fallback clients.
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	records := s.cache.Records()
	if len(records) == 0 {
		http.Error(w, "no snapshot available yet", http.StatusServiceUnavailable)
		return
	}

	lastFetch := s.cache.LastFetch()
	stale := time.Since(lastFetch) > 2*s.pollInterval

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.SnapshotMaxAge.Seconds())))
	w.Header().Set("X-Last-Fetch", lastFetch.UTC().Format(time.RFC3339))
	w.Header().Set("X-Stale", strconv.FormatBool(stale))

	json.NewEncoder(w).Encode(records)
}

// handleKlines proxies genuine OHLC candles from the exchange kline endpoint.
func (s *Server) handleKlines(w http.ResponseWriter, r *http.Request) {
	if s.klines == nil {
		http.Error(w, "klines unavailable", http.StatusServiceUnavailable)
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = DefaultKlineInterval
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	klines, err := s.klines.GetKlines(r.Context(), symbol, interval, limit)
	if err != nil {
		s.logger.Warn("kline fetch failed", "symbol", symbol, "error", err)
		if errors.Is(err, upstream.ErrShape) {
			http.Error(w, "upstream returned unexpected data", http.StatusBadGateway)
			return
		}
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(klines)
}
