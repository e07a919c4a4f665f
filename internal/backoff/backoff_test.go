package backoff

import (
	"testing"
	"time"
)

func TestDelayExponentialGrowth(t *testing.T) {
	base := time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}

	for _, tc := range cases {
		if got := Delay(tc.attempt, base, 0, 2.0, 0); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDelayMaxCap(t *testing.T) {
	if got := Delay(10, time.Second, 5*time.Second, 2.0, 0); got != 5*time.Second {
		t.Errorf("Expected delay capped at 5s, got %v", got)
	}
}

func TestDelayCustomMultiplier(t *testing.T) {
	if got := Delay(2, time.Second, 0, 3.0, 0); got != 9*time.Second {
		t.Errorf("Expected 9s with multiplier 3, got %v", got)
	}
	// Non-positive multiplier falls back to doubling.
	if got := Delay(1, time.Second, 0, 0, 0); got != 2*time.Second {
		t.Errorf("Expected fallback doubling, got %v", got)
	}
}

func TestDelayNegativeAttempt(t *testing.T) {
	if got := Delay(-5, time.Second, 0, 2.0, 0); got != time.Second {
		t.Errorf("Expected base delay for negative attempt, got %v", got)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	base := time.Second
	for i := 0; i < 100; i++ {
		got := Delay(1, base, 0, 2.0, 0.5)
		if got < 2*time.Second || got > 3*time.Second {
			t.Fatalf("Jittered delay %v outside [2s, 3s]", got)
		}
	}
}

func TestDelayJitterRespectsCap(t *testing.T) {
	maxDelay := 2 * time.Second
	for i := 0; i < 100; i++ {
		if got := Delay(1, time.Second, maxDelay, 2.0, 1.0); got > maxDelay {
			t.Fatalf("Jittered delay %v exceeds cap %v", got, maxDelay)
		}
	}
}

func TestDelayOverflowGuard(t *testing.T) {
	// Absurd attempt counts must not wrap negative.
	if got := Delay(1000, time.Second, 30*time.Second, 2.0, 0); got != 30*time.Second {
		t.Errorf("Expected capped delay for huge attempt, got %v", got)
	}
}

func TestPow(t *testing.T) {
	cases := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2.0, 0, 1},
		{2.0, 1, 2},
		{2.0, 10, 1024},
		{1.5, 2, 2.25},
	}

	for _, tc := range cases {
		if got := Pow(tc.base, tc.exponent); got != tc.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tc.base, tc.exponent, got, tc.want)
		}
	}
}
