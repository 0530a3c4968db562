package stream

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes jittered exponential reconnect delays.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff returns a backoff policy suitable for stream reconnects.
func DefaultBackoff(min, max time.Duration) Backoff {
	return Backoff{
		Min:    min,
		Max:    max,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay before the given retry attempt. Attempt 0 yields
// roughly Min; each further attempt multiplies by Factor up to Max. Jitter
// spreads the result by up to +/-Jitter so reconnecting clients do not
// stampede the feed in lockstep.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	factor := b.Factor
	if factor < 1 {
		factor = 2.0
	}

	d := float64(b.Min) * math.Pow(factor, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}

	if b.Jitter > 0 {
		delta := d * b.Jitter
		d = d - delta + rand.Float64()*2*delta
	}

	if d < float64(b.Min) {
		d = float64(b.Min)
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d)
}
