package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// SSETransport dials the server-sent-events stream endpoint.
type SSETransport struct {
	// URL is the full stream endpoint, e.g. http://host:8090/api/stream.
	URL string

	// Client is used for the streaming request. The zero client is fine;
	// it must not carry a global timeout or the stream would be cut off.
	Client *http.Client
}

func (t *SSETransport) Name() string { return "sse" }

// Dial opens the event stream. The session lives until Close or a read error.
func (t *SSETransport) Dial(ctx context.Context) (Conn, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	// The request context outlives Dial's; Close cancels it to unblock reads.
	reqCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.URL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	resp, err := client.Do(req)
	close(done)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream endpoint returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	// Large symbol sets can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	return &sseConn{
		resp:    resp,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

type sseConn struct {
	resp    *http.Response
	scanner *bufio.Scanner
	cancel  context.CancelFunc
}

// Next reads frames until a complete tickers event arrives. Heartbeat
// comments and unknown event types are skipped.
func (c *sseConn) Next(ctx context.Context) ([]model.TickerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data string
	for c.scanner.Scan() {
		line := c.scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "event:"):
			// single event type on this stream; nothing to dispatch on
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if data == "" {
				continue
			}
			var records []model.TickerRecord
			if err := json.Unmarshal([]byte(data), &records); err != nil {
				return nil, fmt.Errorf("decoding event data: %w", err)
			}
			return records, nil
		}
	}

	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("stream closed by server")
}

func (c *sseConn) Close() error {
	c.cancel()
	return c.resp.Body.Close()
}
