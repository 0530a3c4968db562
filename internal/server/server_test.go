package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/RojasCortes/tickerfeed/internal/broadcast"
	"github.com/RojasCortes/tickerfeed/internal/cache"
	"github.com/RojasCortes/tickerfeed/internal/config"
	"github.com/RojasCortes/tickerfeed/internal/model"
	"github.com/RojasCortes/tickerfeed/internal/upstream"
)

type testFeed struct {
	cache       *cache.Cache
	broadcaster *broadcast.Broadcaster
	server      *Server
	ts          *httptest.Server
}

func newTestFeed(t *testing.T, klines KlineSource) *testFeed {
	t.Helper()

	cfg := config.ServerConfig{
		AllowedOrigin:     "*",
		HeartbeatInterval: 50 * time.Millisecond,
		SnapshotMaxAge:    20 * time.Second,
	}

	c := cache.New()
	b := broadcast.New(16, nil)
	s := New(cfg, 30*time.Second, c, b, nil, klines, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(b.Close)

	return &testFeed{cache: c, broadcaster: b, server: s, ts: ts}
}

func testRecords() []model.TickerRecord {
	return []model.TickerRecord{
		{Symbol: "BTCUSDT", Price: decimal.NewFromInt(50000), ChangePercent24h: decimal.RequireFromString("2.5"), Volume24h: decimal.NewFromInt(1000), ObservedAt: time.Now()},
		{Symbol: "ETHUSDT", Price: decimal.NewFromInt(3000), ChangePercent24h: decimal.RequireFromString("-1.2"), Volume24h: decimal.NewFromInt(5000), ObservedAt: time.Now()},
	}
}

func TestHandleTickers(t *testing.T) {
	t.Run("empty cache returns 503", func(t *testing.T) {
		f := newTestFeed(t, nil)

		resp, err := http.Get(f.ts.URL + "/api/tickers")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
	})

	t.Run("serves snapshot with cache headers", func(t *testing.T) {
		f := newTestFeed(t, nil)
		f.cache.Put(testRecords(), time.Now())

		resp, err := http.Get(f.ts.URL + "/api/tickers")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got := resp.Header.Get("Cache-Control"); got != "public, max-age=20" {
			t.Errorf("Cache-Control = %q, want %q", got, "public, max-age=20")
		}
		if got := resp.Header.Get("X-Stale"); got != "false" {
			t.Errorf("X-Stale = %q, want %q", got, "false")
		}
		if resp.Header.Get("X-Last-Fetch") == "" {
			t.Error("X-Last-Fetch header missing")
		}

		var records []model.TickerRecord
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("len(records) = %d, want 2", len(records))
		}
		if records[0].Symbol != "BTCUSDT" {
			t.Errorf("records[0].Symbol = %q, want BTCUSDT (sorted)", records[0].Symbol)
		}
		if records[0].Price.String() != "50000" {
			t.Errorf("Price = %s, want 50000", records[0].Price)
		}
	})

	t.Run("stale snapshot still served with flag", func(t *testing.T) {
		f := newTestFeed(t, nil)
		f.cache.Put(testRecords(), time.Now().Add(-5*time.Minute))

		resp, err := http.Get(f.ts.URL + "/api/tickers")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200 (stale data still served)", resp.StatusCode)
		}
		if got := resp.Header.Get("X-Stale"); got != "true" {
			t.Errorf("X-Stale = %q, want %q", got, "true")
		}
	})
}

func TestCORS(t *testing.T) {
	f := newTestFeed(t, nil)
	f.cache.Put(testRecords(), time.Now())

	t.Run("preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, f.ts.URL+"/api/tickers", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("OPTIONS: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d, want 204", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
	})

	t.Run("headers on regular requests", func(t *testing.T) {
		resp, err := http.Get(f.ts.URL + "/api/tickers")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	f := newTestFeed(t, nil)
	f.cache.Put(testRecords(), time.Now())
	sub := f.broadcaster.Register()
	defer f.broadcaster.Unregister(sub)

	resp, err := http.Get(f.ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if health.Subscribers != 1 {
		t.Errorf("Subscribers = %d, want 1", health.Subscribers)
	}
	if health.CachedSymbols != 2 {
		t.Errorf("CachedSymbols = %d, want 2", health.CachedSymbols)
	}
	if health.UpstreamConnected {
		t.Error("UpstreamConnected = true without a poller, want false")
	}
	if health.Status != "degraded" {
		t.Errorf("Status = %q, want degraded (no poller)", health.Status)
	}
	if health.RequestsLastMin < 1 {
		t.Errorf("RequestsLastMin = %d, want >= 1", health.RequestsLastMin)
	}
}

type stubKlines struct {
	klines []model.Kline
	err    error

	gotSymbol   string
	gotInterval string
	gotLimit    int
}

func (s *stubKlines) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	s.gotSymbol = symbol
	s.gotInterval = interval
	s.gotLimit = limit
	return s.klines, s.err
}

func TestHandleKlines(t *testing.T) {
	t.Run("successful proxy", func(t *testing.T) {
		stub := &stubKlines{klines: []model.Kline{{
			Open:  decimal.NewFromInt(100),
			Close: decimal.NewFromInt(110),
		}}}
		f := newTestFeed(t, stub)

		resp, err := http.Get(f.ts.URL + "/api/klines?symbol=BTCUSDT&interval=4h&limit=50")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if stub.gotSymbol != "BTCUSDT" || stub.gotInterval != "4h" || stub.gotLimit != 50 {
			t.Errorf("forwarded (%q, %q, %d), want (BTCUSDT, 4h, 50)", stub.gotSymbol, stub.gotInterval, stub.gotLimit)
		}

		var klines []model.Kline
		if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(klines) != 1 || klines[0].Open.String() != "100" {
			t.Errorf("klines = %v, want one candle with open 100", klines)
		}
	})

	t.Run("default interval applied", func(t *testing.T) {
		stub := &stubKlines{}
		f := newTestFeed(t, stub)

		resp, err := http.Get(f.ts.URL + "/api/klines?symbol=BTCUSDT")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if stub.gotInterval != DefaultKlineInterval {
			t.Errorf("interval = %q, want %q", stub.gotInterval, DefaultKlineInterval)
		}
	})

	t.Run("missing symbol", func(t *testing.T) {
		f := newTestFeed(t, &stubKlines{})

		resp, err := http.Get(f.ts.URL + "/api/klines")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		f := newTestFeed(t, &stubKlines{})

		resp, err := http.Get(f.ts.URL + "/api/klines?symbol=BTCUSDT&limit=zero")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("upstream shape error maps to 502", func(t *testing.T) {
		f := newTestFeed(t, &stubKlines{err: upstream.ErrShape})

		resp, err := http.Get(f.ts.URL + "/api/klines?symbol=BTCUSDT")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
	})

	t.Run("no kline source", func(t *testing.T) {
		f := newTestFeed(t, nil)

		resp, err := http.Get(f.ts.URL + "/api/klines?symbol=BTCUSDT")
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", resp.StatusCode)
		}
	})
}

// readSSEEvent reads one "event: tickers" frame and returns its data payload.
func readSSEEvent(t *testing.T, scanner *bufio.Scanner) []model.TickerRecord {
	t.Helper()

	var data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && data != "":
			var records []model.TickerRecord
			if err := json.Unmarshal([]byte(data), &records); err != nil {
				t.Fatalf("unmarshal event data: %v", err)
			}
			return records
		}
	}
	t.Fatalf("stream ended before a full event: %v", scanner.Err())
	return nil
}

func TestSSEStream(t *testing.T) {
	f := newTestFeed(t, nil)
	f.cache.Put(testRecords(), time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, f.ts.URL+"/api/stream", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	scanner := bufio.NewScanner(resp.Body)

	// Initial snapshot from the cache.
	records := readSSEEvent(t, scanner)
	if len(records) != 2 {
		t.Fatalf("initial snapshot has %d records, want 2", len(records))
	}

	// Wait for the session to register, then publish an update.
	deadline := time.After(time.Second)
	for f.broadcaster.Count() == 0 {
		select {
		case <-deadline:
			t.Fatal("session never registered")
		case <-time.After(time.Millisecond):
		}
	}

	update := []model.TickerRecord{{Symbol: "BTCUSDT", Price: decimal.NewFromInt(51000)}}
	f.broadcaster.Publish(update)

	records = readSSEEvent(t, scanner)
	if len(records) != 1 || records[0].Price.String() != "51000" {
		t.Errorf("update = %v, want single record with price 51000", records)
	}

	// Disconnect; the session must unregister.
	cancel()
	deadline = time.After(time.Second)
	for f.broadcaster.Count() != 0 {
		select {
		case <-deadline:
			t.Fatal("session never unregistered after disconnect")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestWSStream(t *testing.T) {
	f := newTestFeed(t, nil)
	f.cache.Put(testRecords(), time.Now())

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/stream/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var records []model.TickerRecord
	if err := conn.ReadJSON(&records); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("initial snapshot has %d records, want 2", len(records))
	}

	deadline := time.After(time.Second)
	for f.broadcaster.Count() == 0 {
		select {
		case <-deadline:
			t.Fatal("session never registered")
		case <-time.After(time.Millisecond):
		}
	}

	update := []model.TickerRecord{{Symbol: "ETHUSDT", Price: decimal.NewFromInt(3100)}}
	f.broadcaster.Publish(update)

	if err := conn.ReadJSON(&records); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(records) != 1 || records[0].Price.String() != "3100" {
		t.Errorf("update = %v, want single record with price 3100", records)
	}

	conn.Close()
	deadline = time.After(time.Second)
	for f.broadcaster.Count() != 0 {
		select {
		case <-deadline:
			t.Fatal("session never unregistered after close")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRateWindow(t *testing.T) {
	rw := newRateWindow(time.Minute)
	now := time.Now()

	rw.Add(now.Add(-2 * time.Minute)) // outside window
	rw.Add(now.Add(-30 * time.Second))
	rw.Add(now)

	if got := rw.Count(now); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
}
