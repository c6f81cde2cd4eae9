package workers

import (
	rand "math/rand/v2"
	"time"
)

// jitterBackoff computes the next retry delay with jittered exponential
// growth capped at capDur. Growth starts from base when prev <= 0; jitter
// keeps racing retriers from thundering in lockstep.
func jitterBackoff(prev, base time.Duration, mult float64, capDur time.Duration) time.Duration {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur > 0 && capDur < base {
		return capDur
	}
	if prev <= 0 {
		return base
	}

	maxDelta := time.Duration(float64(prev)*mult) - base
	if maxDelta <= 0 {
		maxDelta = base
	}
	next := base + time.Duration(rand.Int64N(int64(maxDelta))) //nolint:gosec // non-crypto backoff jitter
	if capDur > 0 && next > capDur {
		return capDur
	}
	return next
}
