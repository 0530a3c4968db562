// Package broadcast implements snapshot fan-out to subscriber sessions.
//
// Each subscriber owns a buffered channel; Publish performs a non-blocking
// send to every channel and drops subscribers whose buffer is full. One slow
// consumer can therefore never delay delivery to the others — back-pressure
// is resolved by dropping that subscriber, not by blocking the publisher.
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// DefaultBufferSize is the per-subscriber channel buffer. A subscriber that
// falls this many snapshots behind is disconnected.
const DefaultBufferSize = 16

// Subscriber is one registered push connection. It is created by Register
// and owned by the Broadcaster until Unregister; the handle never outlives
// its connection.
type Subscriber struct {
	ID           uuid.UUID
	RegisteredAt time.Time

	ch chan []model.TickerRecord
}

// C returns the subscriber's receive channel. It is closed on unregister.
func (s *Subscriber) C() <-chan []model.TickerRecord {
	return s.ch
}

// Stats contains broadcaster statistics.
type Stats struct {
	Subscribers   int   // Currently registered
	Registrations int64 // Lifetime registrations
	Published     int64 // Publish calls
	Delivered     int64 // Successful per-subscriber sends
	Dropped       int64 // Subscribers dropped for full buffers
}

// Broadcaster fans each published snapshot out to all subscribers.
type Broadcaster struct {
	bufferSize int
	logger     *slog.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]*Subscriber

	registrations atomic.Int64
	published     atomic.Int64
	delivered     atomic.Int64
	dropped       atomic.Int64
}

// New creates a Broadcaster. bufferSize <= 0 selects DefaultBufferSize.
func New(bufferSize int, logger *slog.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		bufferSize: bufferSize,
		logger:     logger,
		subs:       make(map[uuid.UUID]*Subscriber),
	}
}

// Register creates a new subscriber and adds it to the fan-out set.
func (b *Broadcaster) Register() *Subscriber {
	sub := &Subscriber{
		ID:           uuid.New(),
		RegisteredAt: time.Now(),
		ch:           make(chan []model.TickerRecord, b.bufferSize),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	count := len(b.subs)
	b.mu.Unlock()

	b.registrations.Add(1)
	b.logger.Debug("subscriber registered", "id", sub.ID, "subscribers", count)
	return sub
}

// Unregister removes a subscriber and closes its channel. It is idempotent:
// a second call for the same subscriber is a no-op.
func (b *Broadcaster) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	_, present := b.subs[sub.ID]
	if present {
		delete(b.subs, sub.ID)
		close(sub.ch)
	}
	count := len(b.subs)
	b.mu.Unlock()

	if present {
		b.logger.Debug("subscriber unregistered", "id", sub.ID, "subscribers", count)
	}
}

// Publish sends the snapshot to every subscriber without blocking. A
// subscriber whose buffer is full is unregistered on the spot; delivery to
// the remaining subscribers proceeds in the same call.
func (b *Broadcaster) Publish(records []model.TickerRecord) {
	b.published.Add(1)

	b.mu.Lock()
	var slow []*Subscriber
	for _, sub := range b.subs {
		select {
		case sub.ch <- records:
			b.delivered.Add(1)
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		delete(b.subs, sub.ID)
		close(sub.ch)
	}
	b.mu.Unlock()

	for _, sub := range slow {
		b.dropped.Add(1)
		b.logger.Warn("dropping slow subscriber", "id", sub.ID)
	}
}

// HandleSnapshot lets the Broadcaster act as the poller's snapshot handler.
func (b *Broadcaster) HandleSnapshot(records []model.TickerRecord) {
	b.Publish(records)
}

// Count returns the number of registered subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Stats returns current statistics.
func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	subscribers := len(b.subs)
	b.mu.Unlock()

	return Stats{
		Subscribers:   subscribers,
		Registrations: b.registrations.Load(),
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Dropped:       b.dropped.Load(),
	}
}

// Close unregisters every subscriber, closing their channels. Used at
// shutdown so sessions observe end-of-stream.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	b.mu.Unlock()
}
