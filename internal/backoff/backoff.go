// Package backoff computes inter-attempt delays for the retry executor.
package backoff

import (
	"math/rand"
	"time"
)

// Delay returns the wait before retry number attempt (0-based: attempt 0 is
// the delay after the first failure). The growth is exponential in the
// attempt index; maxDelay of zero means uncapped.
func Delay(attempt int, base, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Prevent overflow for absurd attempt counts.
	if attempt > 30 {
		attempt = 30
	}
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := time.Duration(float64(base) * Pow(multiplier, attempt))
	if delay < 0 {
		delay = maxDelay
	}
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	if jitter > 0 {
		amount := time.Duration(float64(delay) * jitter * rand.Float64())
		if maxDelay > 0 && delay+amount > maxDelay {
			delay = maxDelay
		} else {
			delay += amount
		}
	}

	return delay
}

// Pow computes base^exponent for non-negative integer exponents.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
