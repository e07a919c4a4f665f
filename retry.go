package sambung

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ambiyansyah-risyal/sambung/internal/backoff"
)

// RetryExecutor drives repeated attempts of a producer with exponential
// backoff between failures. Delays run on the injected clock and are
// abandoned when the context is canceled.
type RetryExecutor struct {
	clock     clock.Clock
	condition RetryCondition
}

// NewRetryExecutor creates an executor. A nil condition retries every
// failure uniformly.
func NewRetryExecutor(clk clock.Clock, condition RetryCondition) *RetryExecutor {
	if clk == nil {
		clk = clock.New()
	}
	if condition == nil {
		condition = DefaultRetryCondition
	}
	return &RetryExecutor{
		clock:     clk,
		condition: condition,
	}
}

// Execute runs fn up to policy.MaxAttempts times. After a failed attempt it
// waits BaseDelay * Multiplier^(attempt-1) and tries again; once the budget
// is spent it returns an aggregated error wrapping the last cause. A
// condition veto returns the attempt's error unchanged, unaggregated.
func (e *RetryExecutor) Execute(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		if !e.condition(err) {
			return nil, err
		}

		delay := backoff.Delay(attempt-1, policy.BaseDelay, policy.MaxDelay, policy.Multiplier, policy.Jitter)
		if err := e.wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &ClientError{
		Type:        ErrorTypeRetryExhausted,
		Message:     fmt.Sprintf("all %d attempts failed", policy.MaxAttempts),
		Cause:       lastErr,
		Attempt:     policy.MaxAttempts,
		MaxAttempts: policy.MaxAttempts,
		Timestamp:   e.clock.Now(),
	}
}

// wait suspends only this call; other operations keep running.
func (e *RetryExecutor) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := e.clock.Timer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
