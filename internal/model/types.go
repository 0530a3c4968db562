package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TickerRecord is a single symbol's latest price/change/volume snapshot.
//
// Records are immutable values: an update produces a new record, never a
// mutation. Price and Volume24h are always non-negative; unparseable or
// negative upstream fields are normalized to zero at the fetch boundary.
type TickerRecord struct {
	Symbol           string          `json:"symbol"`           // Canonical exchange pair (e.g. "BTCUSDT")
	Price            decimal.Decimal `json:"price"`            // Last trade price
	ChangePercent24h decimal.Decimal `json:"changePercent24h"` // Signed 24h percent change
	Volume24h        decimal.Decimal `json:"volume24h"`        // 24h base-asset volume
	ObservedAt       time.Time       `json:"observedAt"`       // When this record was fetched
}

// Kline is a single OHLC candle from the exchange's kline endpoint.
type Kline struct {
	OpenTime  time.Time       `json:"openTime"`
	CloseTime time.Time       `json:"closeTime"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}
