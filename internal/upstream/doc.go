// Package upstream provides the exchange REST client.
//
// The client issues one batched request per call covering the whole symbol
// set — a single call for N symbols costs the same rate-limit quota as one
// for a single symbol. It validates and normalizes responses but does not
// cache and does not retry; retry cadence belongs to the poller.
//
// Endpoints:
//   - /api/v3/ticker/24hr?symbols=[...]  (batched 24h ticker)
//   - /api/v3/klines                     (OHLC candles)
package upstream
