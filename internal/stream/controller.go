package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/config"
	"github.com/RojasCortes/tickerfeed/internal/model"
)

// State is the controller's position in the connect/fallback lifecycle.
type State int

const (
	// StateConnecting is the initial push connection attempt.
	StateConnecting State = iota
	// StateStreaming means a push session is live.
	StateStreaming
	// StateReconnecting means push dropped and a backed-off retry is pending.
	StateReconnecting
	// StatePolling means push gave up past the retry ceiling and the
	// controller serves data from periodic pulls.
	StatePolling
	// StateFailed means pulls are failing too. Pull attempts continue;
	// the first success returns to Polling.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StatePolling:
		return "polling"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of the controller's counters.
type Stats struct {
	State        State
	Reconnects   int64
	PullFailures int64
	LastUpdate   time.Time
}

// Controller drives a push transport with reconnect backoff and pull
// fallback, exposing the latest snapshot to the application.
type Controller struct {
	cfg       config.ClientConfig
	backoff   Backoff
	transport Transport
	puller    Puller
	logger    *slog.Logger

	mu         sync.RWMutex
	state      State
	snapshot   []model.TickerRecord
	lastUpdate time.Time

	updates chan struct{}

	reconnects   atomic.Int64
	pullFailures atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a stopped controller. puller may be nil only if pull
// fallback is never reachable (RetryCeiling of math.MaxInt); in practice
// always provide one.
func NewController(cfg config.ClientConfig, transport Transport, puller Puller, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:       cfg,
		backoff:   DefaultBackoff(cfg.BackoffMin, cfg.BackoffMax),
		transport: transport,
		puller:    puller,
		logger:    logger,
		state:     StateConnecting,
		updates:   make(chan struct{}, 1),
	}
}

// Start launches the lifecycle loop.
func (c *Controller) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(c.ctx)
	}()
	return nil
}

// Stop halts the loop and waits for it to exit.
func (c *Controller) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the latest records, which may be empty before
// the first delivery.
func (c *Controller) Snapshot() []model.TickerRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.TickerRecord, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Updates signals after each snapshot change. Signals are coalesced; read
// Snapshot for the data.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

// Stats returns counters for monitoring.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		State:        c.state,
		Reconnects:   c.reconnects.Load(),
		PullFailures: c.pullFailures.Load(),
		LastUpdate:   c.lastUpdate,
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if changed {
		c.logger.Info("stream state changed", "from", prev.String(), "to", s.String())
	}
}

func (c *Controller) store(records []model.TickerRecord) {
	c.mu.Lock()
	c.snapshot = records
	c.lastUpdate = time.Now()
	c.mu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// run is the outer lifecycle loop: push attempts with backoff, then pull
// fallback past the retry ceiling, then periodic upgrade attempts.
func (c *Controller) run(ctx context.Context) {
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if attempts == 0 {
			c.setState(StateConnecting)
		}

		conn, err := c.transport.Dial(ctx)
		if err == nil {
			attempts = 0
			c.setState(StateStreaming)
			c.logger.Info("push stream established", "transport", c.transport.Name())

			err = c.consume(ctx, conn)
			conn.Close()
			if ctx.Err() != nil {
				return
			}

			// A lost stream is the first reconnect attempt: back off
			// before redialing so a flapping server is not hammered.
			c.logger.Warn("push stream lost", "error", err)
			attempts = 1
			c.reconnects.Add(1)
			c.setState(StateReconnecting)
			if !c.sleep(ctx, c.backoff.Next(0)) {
				return
			}
			continue
		}

		if ctx.Err() != nil {
			return
		}

		attempts++
		c.reconnects.Add(1)
		c.logger.Warn("push connect failed",
			"transport", c.transport.Name(),
			"attempt", attempts,
			"error", err,
		)

		if attempts > c.cfg.RetryCeiling {
			if !c.pollUntilUpgrade(ctx) {
				return
			}
			attempts = 0
			continue
		}

		c.setState(StateReconnecting)
		if !c.sleep(ctx, c.backoff.Next(attempts-1)) {
			return
		}
	}
}

// consume reads snapshots off one live push session until it ends. A
// cancelled context closes the connection so a blocked read cannot outlive
// shutdown.
func (c *Controller) consume(ctx context.Context, conn Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		records, err := conn.Next(ctx)
		if err != nil {
			return err
		}
		c.store(records)
	}
}

// pollUntilUpgrade serves data from the pull endpoint until the upgrade
// interval elapses, then returns true so the caller retries push. Returns
// false only on shutdown.
func (c *Controller) pollUntilUpgrade(ctx context.Context) bool {
	c.setState(StatePolling)
	c.logger.Info("falling back to pull mode",
		"poll_interval", c.cfg.PollInterval,
		"upgrade_interval", c.cfg.UpgradeInterval,
	)

	upgrade := time.NewTimer(c.cfg.UpgradeInterval)
	defer upgrade.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	consecutive := 0
	c.pull(ctx, &consecutive)

	for {
		select {
		case <-ctx.Done():
			return false
		case <-upgrade.C:
			c.logger.Info("attempting upgrade to push")
			return true
		case <-ticker.C:
			c.pull(ctx, &consecutive)
		}
	}
}

func (c *Controller) pull(ctx context.Context, consecutive *int) {
	if c.puller == nil {
		return
	}

	records, err := c.puller.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		*consecutive++
		c.pullFailures.Add(1)
		c.logger.Warn("pull failed", "consecutive", *consecutive, "error", err)
		if *consecutive >= c.cfg.PullFailureLimit {
			c.setState(StateFailed)
		}
		return
	}

	*consecutive = 0
	c.setState(StatePolling)
	c.store(records)
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
