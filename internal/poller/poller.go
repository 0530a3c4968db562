package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/cache"
	"github.com/RojasCortes/tickerfeed/internal/model"
)

// Fetcher fetches the batched ticker set from the upstream exchange.
type Fetcher interface {
	FetchAll(ctx context.Context, symbols []string) ([]model.TickerRecord, error)
}

// SnapshotHandler receives each successfully fetched snapshot.
type SnapshotHandler interface {
	HandleSnapshot(records []model.TickerRecord)
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func([]model.TickerRecord)

func (f SnapshotHandlerFunc) HandleSnapshot(records []model.TickerRecord) {
	f(records)
}

// Config holds poller configuration.
type Config struct {
	Symbols          []string      // Symbol set for the batched fetch
	Interval         time.Duration // Poll interval (default: 30s)
	Timeout          time.Duration // Per-cycle fetch timeout (default: 5s)
	FailureThreshold int           // Consecutive failures before unhealthy (default: 3)
}

// DefaultConfig returns sensible defaults (symbols must still be supplied).
func DefaultConfig() Config {
	return Config{
		Interval:         30 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 3,
	}
}

// Stats contains runtime poller statistics.
type Stats struct {
	Cycles              int64
	Failures            int64
	ConsecutiveFailures int64
	LastSuccessAt       time.Time
}

// Poller periodically fetches the ticker set and feeds cache + handler.
type Poller struct {
	cfg     Config
	fetcher Fetcher
	cache   *cache.Cache
	handler SnapshotHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight    atomic.Bool
	cycles      atomic.Int64
	failures    atomic.Int64
	consecutive atomic.Int64
	lastSuccess atomic.Int64 // unix micros, 0 = never
}

// New creates a new Poller.
func New(cfg Config, fetcher Fetcher, c *cache.Cache, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   c,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("ticker poller started",
		"interval", p.cfg.Interval,
		"symbols", len(p.cfg.Symbols),
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("ticker poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Healthy reports whether the upstream connection is considered good:
// fewer consecutive failures than the configured threshold.
func (p *Poller) Healthy() bool {
	return p.consecutive.Load() < int64(p.cfg.FailureThreshold)
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	s := Stats{
		Cycles:              p.cycles.Load(),
		Failures:            p.failures.Load(),
		ConsecutiveFailures: p.consecutive.Load(),
	}
	if us := p.lastSuccess.Load(); us != 0 {
		s.LastSuccessAt = time.UnixMicro(us)
	}
	return s
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one fetch cycle. If a previous cycle is still in flight the
// tick is skipped — at most one fetch in flight.
func (p *Poller) poll() {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Warn("previous fetch still in flight, skipping tick")
		return
	}
	defer p.inFlight.Store(false)

	p.cycles.Add(1)
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	records, err := p.fetcher.FetchAll(ctx, p.cfg.Symbols)
	if err != nil {
		failures := p.consecutive.Add(1)
		p.failures.Add(1)
		p.logger.Warn("fetch cycle failed, keeping previous snapshot",
			"err", err,
			"consecutive_failures", failures,
		)
		return
	}

	// An empty batch would wipe the last known-good snapshot; treat it as
	// a failed cycle instead.
	if len(records) == 0 {
		failures := p.consecutive.Add(1)
		p.failures.Add(1)
		p.logger.Warn("fetch cycle returned no records, keeping previous snapshot",
			"consecutive_failures", failures,
		)
		return
	}

	now := time.Now()
	p.cache.Put(records, now)
	p.consecutive.Store(0)
	p.lastSuccess.Store(now.UnixMicro())

	if p.handler != nil {
		p.handler.HandleSnapshot(records)
	}

	p.logger.Debug("poll cycle complete",
		"records", len(records),
		"duration", time.Since(start),
	)
}
