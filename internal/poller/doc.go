// Package poller implements the upstream fetch loop.
//
// The poller:
//   - Fetches the batched 24h ticker set on a fixed interval
//   - Writes successful results into the cache, then notifies the handler
//   - Leaves the cache untouched on failure (last known-good stays authoritative)
//   - Never overlaps two fetch cycles; a tick that fires mid-fetch is skipped
package poller
