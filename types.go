package sambung

import (
	"context"
	"time"
)

// Payload carries the operation-specific request fields. It is flattened into
// the wire envelope next to the operation name.
type Payload map[string]any

// Result is the decoded outcome of a backend operation. Fields holds every
// top-level member of the response body, including the success indicator and
// message, so callers can reach operation-specific data without re-decoding.
type Result struct {
	Success bool
	Message string
	Fields  map[string]any
}

// StringField returns the named top-level response field as a string.
func (r *Result) StringField(name string) (string, bool) {
	if r == nil || r.Fields == nil {
		return "", false
	}
	v, ok := r.Fields[name].(string)
	return v, ok
}

// ObjectField returns the named top-level response field as an object.
func (r *Result) ObjectField(name string) (map[string]any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[name].(map[string]any)
	return v, ok
}

// Envelope is the wire-level request for a single operation. It is built per
// call and discarded after the call settles.
type Envelope struct {
	Operation    string
	Payload      Payload
	AuthIdentity string
}

// Transport sends an encoded envelope to the fixed backend endpoint and
// returns the raw response body.
type Transport interface {
	Send(ctx context.Context, body []byte) ([]byte, error)
}

// CallFunc performs one exchange for an envelope. It terminates a middleware
// chain.
type CallFunc func(ctx context.Context, env *Envelope) (*Result, error)

// Middleware transforms or observes a call before passing it on. Middleware
// runs once per attempt, inside the retry loop.
type Middleware func(ctx context.Context, env *Envelope, next CallFunc) (*Result, error)

// IdentityProvider reports the identity of the currently authenticated user,
// if any. The auth-injection middleware consults it before each attempt.
type IdentityProvider interface {
	CurrentIdentity() (string, bool)
}

// RetryPolicy bounds the attempt budget for one call. Immutable per call.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; it doubles per attempt
	// unless Multiplier overrides the factor.
	BaseDelay time.Duration
	// MaxDelay caps a single inter-attempt wait. Zero means no cap.
	MaxDelay time.Duration
	// Multiplier scales the delay between attempts. Zero means 2.0.
	Multiplier float64
	// Jitter in [0,1] adds a random fraction of the delay. Zero keeps the
	// backoff deterministic.
	Jitter float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// RetryCondition decides whether a failed attempt may be retried. The default
// retries every failure kind uniformly up to the budget.
type RetryCondition func(err error) bool

// CallOptions control caching and retry behavior for a single Call.
type CallOptions struct {
	// Cacheable marks the operation as a read whose result may be served from
	// and stored into the cache.
	Cacheable bool
	// TTL overrides the client's default cache TTL for this call.
	TTL time.Duration
	// Retry overrides the client's default retry policy for this call.
	Retry *RetryPolicy
}

// KeyFunc derives the deterministic cache/de-duplication key for a call.
// Payload key order must not affect the key.
type KeyFunc func(operation string, payload Payload) (string, error)

// ResultCache stores previously obtained results keyed by operation key.
type ResultCache interface {
	Get(key string) (*Result, bool)
	Set(key string, value *Result, ttl time.Duration)
	Invalidate(pred func(key string) bool)
	Clear()
}

// KeyValueStore is durable string-keyed storage used to persist the session
// across restarts.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Option configures a Client.
type Option func(*Client)
