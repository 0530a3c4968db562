package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RojasCortes/tickerfeed/internal/model"
)

// DefaultKlineLimit is the number of candles returned when no limit is given.
const DefaultKlineLimit = 100

// GetKlines fetches OHLC candles for a single symbol.
//
// The wire format is a list of positional arrays:
//
//	[ openTimeMs, "open", "high", "low", "close", "volume", closeTimeMs, ... ]
//
// A non-list top-level response is ErrShape. Rows that are too short are
// skipped.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	if limit <= 0 {
		limit = DefaultKlineLimit
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/api/v3/klines", query)
	if err != nil {
		return nil, fmt.Errorf("get klines %s: %w", symbol, err)
	}

	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShape, err)
	}

	klines := make([]model.Kline, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		klines = append(klines, model.Kline{
			OpenTime:  millisToTime(row[0]),
			Open:      klineDecimal(row[1]),
			High:      klineDecimal(row[2]),
			Low:       klineDecimal(row[3]),
			Close:     klineDecimal(row[4]),
			Volume:    klineDecimal(row[5]),
			CloseTime: millisToTime(row[6]),
		})
	}

	return klines, nil
}

// millisToTime converts a JSON epoch-milliseconds value to time.Time.
func millisToTime(v interface{}) time.Time {
	ms, ok := v.(float64)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}

// klineDecimal parses a positional string field, zero on failure.
func klineDecimal(v interface{}) decimal.Decimal {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
