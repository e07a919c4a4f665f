package sambung

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Client is the request orchestrator for a single backend endpoint. It layers
// result caching, in-flight de-duplication, retries with exponential backoff,
// a middleware chain and metrics around the transport. It is safe for
// concurrent use.
type Client struct {
	transport     Transport
	clock         clock.Clock
	keyFunc       KeyFunc
	cache         ResultCache
	cacheTTL      time.Duration
	cacheDisabled bool
	dedup         *DeduplicationTracker
	retry         *RetryExecutor
	retryPolicy   RetryPolicy
	retryCond     RetryCondition
	metrics       *MetricsCollector
	debug         *DebugConfig
	logger        Logger

	// middleware and authProvider may be bound after construction but before
	// the first call; see Use and SetIdentityProvider.
	mu           sync.RWMutex
	middleware   []Middleware
	authProvider IdentityProvider

	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		clock:       clock.New(),
		keyFunc:     DefaultKeyFunc,
		dedup:       NewDeduplicationTracker(),
		retryPolicy: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second},
		retryCond:   DefaultRetryCondition,
		cacheTTL:    5 * time.Minute,
		debug:       DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.cache == nil && !client.cacheDisabled {
		client.cache = NewMemoryCache(client.clock)
	}
	client.retry = NewRetryExecutor(client.clock, client.retryCond)

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Use appends middleware to the chain. It exists so collaborators created
// after the client (like the session manager) can register themselves; it
// must not be called once requests are flowing.
func (c *Client) Use(middleware ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, middleware...)
}

// SetIdentityProvider binds the provider consulted by the auth-injection
// step. NewSessionManager calls this when the client has no provider yet.
func (c *Client) SetIdentityProvider(provider IdentityProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authProvider = provider
}

// IdentityProviderSet reports whether an identity provider is bound.
func (c *Client) IdentityProviderSet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authProvider != nil
}

// Call performs the named backend operation with the given payload.
//
// The algorithm: derive the deterministic key; serve cacheable calls from a
// live cache entry without any exchange; otherwise coalesce onto an in-flight
// identical call or become its owner and drive the retry loop over the
// middleware chain and transport. On a cacheable success the result is stored
// under the call's TTL.
func (c *Client) Call(ctx context.Context, operation string, payload Payload, opts CallOptions) (*Result, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	start := c.clock.Now()

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debugEnabled(c.debug != nil && c.debug.LogRequests) {
		c.logger.Debug("Starting call", "requestID", requestID, "operation", operation)
	}

	key, err := c.keyFunc(operation, payload)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeValidation,
			Message:   "payload is not serializable",
			Cause:     err,
			Operation: operation,
			RequestID: requestID,
			Timestamp: c.clock.Now(),
		}
	}

	c.metrics.RecordRequestStart(operation)
	defer c.metrics.RecordRequestEnd(operation)

	cacheable := opts.Cacheable && c.cache != nil
	if cacheable {
		if result, found := c.cache.Get(key); found {
			if c.debugEnabled(c.debug != nil && c.debug.LogCache) {
				c.logger.Debug("Cache hit", "requestID", requestID, "key", key)
			}
			c.metrics.RecordCacheHit(operation)
			c.metrics.RecordRequest(operation, "cache_hit", c.clock.Since(start))
			return result, nil
		}
		c.metrics.RecordCacheMiss(operation)
		if c.debugEnabled(c.debug != nil && c.debug.LogCache) {
			c.logger.Debug("Cache miss", "requestID", requestID, "key", key)
		}
	}

	policy := c.retryPolicy
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	owner := false
	result, err := c.dedup.Run(ctx, key, func() (*Result, error) {
		owner = true
		attempt := 0
		return c.retry.Execute(ctx, policy, func(ctx context.Context) (*Result, error) {
			attempt++
			if attempt > 1 {
				c.metrics.RecordRetry(operation, attempt-1)
				if c.debugEnabled(c.debug != nil && c.debug.LogRetries) {
					c.logger.Info("Retry attempt", "requestID", requestID, "operation", operation, "attempt", attempt, "maxAttempts", policy.MaxAttempts)
				}
			}
			return c.attempt(ctx, operation, payload, requestID)
		})
	})

	if !owner {
		c.metrics.RecordDeduplicationHit(operation)
		if c.debugEnabled(c.debug != nil && c.debug.LogDedup) {
			c.logger.Debug("Coalesced onto in-flight call", "requestID", requestID, "key", key)
		}
	}

	duration := c.clock.Since(start)
	if err != nil {
		c.metrics.RecordRequest(operation, "error", duration)
		c.metrics.RecordError(errorType(err), operation)
		if c.debugEnabled(c.debug != nil && c.debug.LogRequests) {
			c.logger.Warn("Call failed", "requestID", requestID, "operation", operation, "error", err.Error())
		}
		return nil, err
	}

	c.metrics.RecordRequest(operation, "success", duration)

	if cacheable && owner {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = c.cacheTTL
		}
		c.cache.Set(key, result, ttl)
		if memCache, ok := c.cache.(*MemoryCache); ok {
			c.metrics.RecordCacheSize(memCache.Len())
		}
		if c.debugEnabled(c.debug != nil && c.debug.LogCache) {
			c.logger.Debug("Result cached", "requestID", requestID, "key", key, "ttl", ttl)
		}
	}

	return result, nil
}

// attempt performs one exchange: middleware chain, auth injection, transport
// send, response classification.
func (c *Client) attempt(ctx context.Context, operation string, payload Payload, requestID string) (*Result, error) {
	c.mu.RLock()
	middleware := c.middleware
	provider := c.authProvider
	c.mu.RUnlock()

	// Auth injection runs innermost so it sees the envelope as sent.
	pipeline := make([]Middleware, 0, len(middleware)+1)
	pipeline = append(pipeline, middleware...)
	pipeline = append(pipeline, AuthInjection(provider))

	env := &Envelope{Operation: operation, Payload: payload}
	result, err := chain(pipeline, c.send)(ctx, env)
	if err != nil {
		var clientErr *ClientError
		if errors.As(err, &clientErr) && clientErr.RequestID == "" {
			clientErr.RequestID = requestID
		}
		return nil, err
	}
	return result, nil
}

// send is the base CallFunc terminating every middleware chain.
func (c *Client) send(ctx context.Context, env *Envelope) (*Result, error) {
	body, err := env.MarshalBody()
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeParse,
			Message:   "encoding request envelope failed",
			Cause:     err,
			Operation: env.Operation,
		}
	}

	raw, err := c.transport.Send(ctx, body)
	if err != nil {
		var clientErr *ClientError
		if errors.As(err, &clientErr) {
			if clientErr.Operation == "" {
				clientErr.Operation = env.Operation
			}
			return nil, err
		}
		return nil, &ClientError{
			Type:      ErrorTypeTransport,
			Message:   "transport exchange failed",
			Cause:     err,
			Operation: env.Operation,
		}
	}

	return decodeResult(env.Operation, raw)
}

// InvalidateCache removes every cached entry whose key matches pred. Keys
// start with the operation name, so predicates can scope by operation.
func (c *Client) InvalidateCache(pred func(key string) bool) {
	if c.cache == nil {
		return
	}
	c.cache.Invalidate(pred)
	if memCache, ok := c.cache.(*MemoryCache); ok {
		c.metrics.RecordCacheSize(memCache.Len())
	}
}

// ClearCache removes all cached entries.
func (c *Client) ClearCache() {
	if c.cache == nil {
		return
	}
	c.cache.Clear()
	c.metrics.RecordCacheSize(0)
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) debugEnabled(flag bool) bool {
	return c.debug != nil && c.debug.Enabled && flag && c.logger != nil
}

func errorType(err error) string {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return "Unknown"
}
