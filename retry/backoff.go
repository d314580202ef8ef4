package retry

import (
	"math/rand"
	"time"
)

// Backoff returns the delay before retry attempt n, starting at 1.
type Backoff func(attempt uint64) time.Duration

// DefaultBackoff is used for re-dialing the feed: between one second and one minute.
var DefaultBackoff = NewExponentialWithJitter(time.Second, time.Minute)

// NewExponentialWithJitter returns a Backoff doubling from min up to max with up to 50% jitter.
// Non-positive min or max default to 100ms and 10s. It panics if min >= max.
func NewExponentialWithJitter(min, max time.Duration) Backoff {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	if min >= max {
		panic("max must be greater than min")
	}

	return func(attempt uint64) time.Duration {
		d := min << attempt
		if d < min || d > max {
			// Overflowed or beyond the cap.
			d = max
		}

		// #nosec G404 -- jitter needs no cryptographic randomness.
		d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
		if d < min {
			d = min
		}

		return d
	}
}
