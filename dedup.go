package sambung

import (
	"context"
	"sync"
)

// inflightCall is one pending exchange shared between callers.
type inflightCall struct {
	done   chan struct{}
	result *Result
	err    error
}

// DeduplicationTracker coalesces concurrent calls sharing a key into one
// in-flight exchange. At most one inflightCall exists per key at any instant;
// the entry is removed before waiters are released, so a call arriving after
// settlement starts a fresh exchange instead of reusing a completed entry.
type DeduplicationTracker struct {
	mu    sync.Mutex
	calls map[string]*inflightCall
}

// NewDeduplicationTracker returns an empty tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		calls: make(map[string]*inflightCall),
	}
}

// Run executes fn under key. The first caller for a key becomes the owner and
// invokes fn exactly once; every concurrent caller with the same key waits
// for the owner and receives the same outcome, success or failure. A waiter's
// context cancellation releases only that waiter.
func (t *DeduplicationTracker) Run(ctx context.Context, key string, fn func() (*Result, error)) (*Result, error) {
	t.mu.Lock()
	if call, exists := t.calls[key]; exists {
		t.mu.Unlock()
		return call.wait(ctx)
	}

	call := &inflightCall{done: make(chan struct{})}
	t.calls[key] = call
	t.mu.Unlock()

	call.result, call.err = fn()

	// Remove before notifying so post-settlement callers start fresh.
	t.mu.Lock()
	delete(t.calls, key)
	t.mu.Unlock()

	close(call.done)
	return call.result, call.err
}

// Pending reports whether an exchange for key is currently in flight.
func (t *DeduplicationTracker) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.calls[key]
	return exists
}

func (c *inflightCall) wait(ctx context.Context) (*Result, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
