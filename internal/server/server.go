package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/broadcast"
	"github.com/RojasCortes/tickerfeed/internal/cache"
	"github.com/RojasCortes/tickerfeed/internal/config"
	"github.com/RojasCortes/tickerfeed/internal/model"
	"github.com/RojasCortes/tickerfeed/internal/poller"
)

// KlineSource fetches OHLC candles; satisfied by the upstream client.
type KlineSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error)
}

// Server is the HTTP surface of the feed.
type Server struct {
	cfg          config.ServerConfig
	pollInterval time.Duration
	cache        *cache.Cache
	broadcaster  *broadcast.Broadcaster
	poller       *poller.Poller
	klines       KlineSource
	logger       *slog.Logger

	httpServer *http.Server
	requests   *rateWindow
}

// New creates the HTTP server. poller and klines may be nil (health then
// reports upstream as disconnected and /api/klines returns 503).
func New(cfg config.ServerConfig, pollInterval time.Duration, c *cache.Cache, b *broadcast.Broadcaster, p *poller.Poller, klines KlineSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		pollInterval: pollInterval,
		cache:        c,
		broadcaster:  b,
		poller:       p,
		klines:       klines,
		logger:       logger,
		requests:     newRateWindow(time.Minute),
	}

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Handler(),
	}

	return s
}

// Handler returns the routed handler with CORS and request accounting.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/stream/ws", s.handleStreamWS)
	mux.HandleFunc("/api/tickers", s.handleTickers)
	mux.HandleFunc("/api/klines", s.handleKlines)
	mux.HandleFunc("/api/health", s.handleHealth)
	return s.middleware(mux)
}

// Start begins serving. The listener runs until Stop or a fatal error.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("http server started", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, draining open connections.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.logger.Info("http server stopped")
	return err
}

// middleware applies CORS headers and request-rate accounting to all routes.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(time.Now())

		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Last-Event-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateWindow counts events within a sliding window, for the health surface.
type rateWindow struct {
	window time.Duration

	mu     sync.Mutex
	events []time.Time
}

func newRateWindow(window time.Duration) *rateWindow {
	return &rateWindow{window: window}
}

// Add records one event at t.
func (r *rateWindow) Add(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(t)
	r.events = append(r.events, t)
}

// Count returns the number of events within the window ending at now.
func (r *rateWindow) Count(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(now)
	return len(r.events)
}

func (r *rateWindow) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.events) && r.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		r.events = append(r.events[:0], r.events[i:]...)
	}
}
