// Package server exposes the feed over HTTP:
//
//   - GET /api/stream     — SSE push stream of ticker snapshots
//   - GET /api/stream/ws  — WebSocket push stream (same payloads)
//   - GET /api/tickers    — pull snapshot (fallback for clients without push)
//   - GET /api/klines     — OHLC candles proxied from the exchange
//   - GET /api/health     — operator-facing status
//
// Push payloads are full snapshots, never deltas: a client that misses N
// events is made whole by the next one. Each open push connection is one
// broadcaster subscription; the session unregisters exactly once on any
// exit path.
package server
