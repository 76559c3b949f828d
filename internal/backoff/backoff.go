package backoff

import (
	"math/rand"
	"time"
)

type Policy string

const (
	PolicyFixed          Policy = "fixed"
	PolicyLinear         Policy = "linear"
	PolicyExponential    Policy = "exponential"
	PolicyExpEqualJitter Policy = "exp_equal_jitter"
	PolicyExpFullJitter  Policy = "exp_full_jitter"
)

// Delay returns how long to wait before retry number attempt (0-based).
// Unknown policies fall back to full jitter.
func Delay(policy Policy, base, max time.Duration, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	switch policy {
	case PolicyFixed:
		return capAt(base, max)
	case PolicyLinear:
		n := attempt
		if n < 1 {
			n = 1
		}
		return capAt(base*time.Duration(n), max)
	case PolicyExponential:
		return exp(base, max, attempt)
	case PolicyExpEqualJitter:
		d := exp(base, max, attempt)
		half := d / 2
		return half + time.Duration(rng.Int63n(int64(half)+1))
	default:
		d := exp(base, max, attempt)
		if d <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(d) + 1))
	}
}

// exp computes base*2^attempt without overflowing past max.
func exp(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	return capAt(d, max)
}

func capAt(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
