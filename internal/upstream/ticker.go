package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// ticker24hWire is one element of the batched 24h ticker response.
// Numeric fields arrive as strings.
type ticker24hWire struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
}

// FetchAll fetches 24h ticker statistics for the whole symbol set in a
// single batched request.
//
// The top-level response must be a JSON list; anything else is ErrShape and
// fails the call. Individual records are lenient: an unparseable numeric
// field defaults to zero rather than aborting the batch, and items whose
// symbol was not requested are skipped. Records observe the invariants
// Price >= 0 and Volume24h >= 0.
func (c *Client) FetchAll(ctx context.Context, symbols []string) ([]model.TickerRecord, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("empty symbol set")
	}

	query := url.Values{}
	query.Set("symbols", symbolsParam(symbols))

	body, err := c.doRequest(ctx, "/api/v3/ticker/24hr", query)
	if err != nil {
		return nil, fmt.Errorf("fetch tickers: %w", err)
	}

	var items []ticker24hWire
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}

	requested := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		requested[s] = struct{}{}
	}

	now := time.Now()
	records := make([]model.TickerRecord, 0, len(items))
	for _, item := range items {
		if _, ok := requested[item.Symbol]; !ok {
			c.logger.Debug("skipping unrequested symbol", "symbol", item.Symbol)
			continue
		}

		records = append(records, model.TickerRecord{
			Symbol:           item.Symbol,
			Price:            c.parseNonNegative(item.Symbol, "lastPrice", item.LastPrice),
			ChangePercent24h: c.parseSigned(item.Symbol, "priceChangePercent", item.PriceChangePercent),
			Volume24h:        c.parseNonNegative(item.Symbol, "volume", item.Volume),
			ObservedAt:       now,
		})
	}

	return records, nil
}

// symbolsParam builds the batch query value: ["BTCUSDT","ETHUSDT"]
// (compact JSON array, the form the exchange expects).
func symbolsParam(symbols []string) string {
	quoted := make([]string, len(symbols))
	for i, s := range symbols {
		quoted[i] = `"` + s + `"`
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

// parseSigned parses a decimal field, defaulting to zero on parse failure.
func (c *Client) parseSigned(symbol, field, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		c.logger.Warn("unparseable ticker field, defaulting to 0",
			"symbol", symbol,
			"field", field,
			"value", raw,
		)
		return decimal.Zero
	}
	return d
}

// parseNonNegative parses a decimal field that must be >= 0; parse failures
// and negative values both default to zero.
func (c *Client) parseNonNegative(symbol, field, raw string) decimal.Decimal {
	d := c.parseSigned(symbol, field, raw)
	if d.IsNegative() {
		c.logger.Warn("negative ticker field, defaulting to 0",
			"symbol", symbol,
			"field", field,
			"value", raw,
		)
		return decimal.Zero
	}
	return d
}
