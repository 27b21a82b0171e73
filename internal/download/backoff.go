package download

import (
	"math"
	"math/rand/v2"
	"time"
)

// Default backoff parameters.
const (
	DefaultBackoffBase   = 2 * time.Second
	DefaultBackoffMax    = 10 * time.Second
	DefaultBackoffJitter = 0.2
)

// Backoff computes the delay before a retry: Base × 2^attempt, capped at Max,
// then spread by ±Jitter (a fraction of the delay) and capped again.
type Backoff struct {
	// Base is the delay after the first failed attempt.
	Base time.Duration

	// Max caps every delay.
	Max time.Duration

	// Jitter is the maximum relative deviation, in [0, 1].
	Jitter float64

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// DefaultBackoff returns the backoff used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   DefaultBackoffBase,
		Max:    DefaultBackoffMax,
		Jitter: DefaultBackoffJitter,
	}
}

// Delay returns the wait after the failed attempt with zero-based index attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}

	if j := math.Min(math.Max(b.Jitter, 0), 1); j > 0 {
		r := rand.Float64
		if b.Rand != nil {
			r = b.Rand
		}
		d *= 1 + j*(2*r()-1)
	}

	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	return time.Duration(d)
}
