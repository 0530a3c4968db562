package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// PullClient fetches one-shot snapshots from the pull endpoint. It is the
// degraded-mode data source when push cannot be established.
type PullClient struct {
	// URL is the snapshot endpoint, e.g. http://host:8090/api/tickers.
	URL string

	Client *http.Client
}

// Fetch retrieves the current snapshot. A 503 (no data yet) and any non-200
// status are errors; the caller decides how many failures to tolerate.
func (p *PullClient) Fetch(ctx context.Context) ([]model.TickerRecord, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("snapshot endpoint returned %d", resp.StatusCode)
	}

	var records []model.TickerRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return records, nil
}
