// Package cache implements the process-wide ticker snapshot store.
//
// The cache is single-writer (the poller) and multi-reader (broadcaster,
// pull endpoint). A Put replaces the whole mapping in one swap, so readers
// always observe a complete snapshot from a single fetch cycle, never a mix.
// Entries carry no TTL; staleness is judged by callers against FetchedAt.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// Entry pairs a ticker record with the fetch cycle that produced it.
type Entry struct {
	Record    model.TickerRecord
	FetchedAt time.Time
}

// Cache holds the latest ticker snapshot per symbol.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
	}
}

// Put replaces the entire snapshot with the given records. Every entry of
// one Put shares the same FetchedAt; symbols absent from records drop out.
// Only the poller calls Put.
func (c *Cache) Put(records []model.TickerRecord, now time.Time) {
	next := make(map[string]Entry, len(records))
	for _, r := range records {
		next[r.Symbol] = Entry{Record: r, FetchedAt: now}
	}

	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

// Get returns the entry for a symbol, if present.
func (c *Cache) Get(symbol string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	return e, ok
}

// All returns a copy of the current snapshot mapping.
func (c *Cache) All() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Records returns the current records sorted by symbol, for stable payloads.
func (c *Cache) Records() []model.TickerRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.TickerRecord, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// LastFetch returns the FetchedAt of the current snapshot, or the zero time
// if no fetch has succeeded yet.
func (c *Cache) LastFetch() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var last time.Time
	for _, e := range c.entries {
		// All entries share one FetchedAt; any will do.
		last = e.FetchedAt
		break
	}
	return last
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
