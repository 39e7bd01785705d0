package spektrum

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays with capped exponential growth and upward
// jitter, so many clients hit by the same outage do not retry in lockstep.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	// Rand supplies jitter. Nil falls back to the shared global source.
	Rand *rand.Rand
}

// jitter band: computed delay scaled by [1.0, 1.25).
const jitterSpread = 0.25

// Delay returns the delay before retry number attempt (zero-based). It is
// deterministic given the attempt index and the random source.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	max := b.Max
	if max < initial {
		max = initial
	}

	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}

	factor := 1 + jitterSpread*b.float64()
	return time.Duration(float64(d) * factor)
}

func (b Backoff) float64() float64 {
	if b.Rand != nil {
		return b.Rand.Float64()
	}
	return rand.Float64()
}
