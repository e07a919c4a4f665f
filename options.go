package sambung

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
)

// WithTransport sets the transport used for every exchange.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithHTTPTransport configures the default HTTP transport against the fixed
// endpoint, with the shared static credential.
func WithHTTPTransport(endpoint, credential string, options ...HTTPTransportOption) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(endpoint, credential, options...)
	}
}

// WithHTTPClient sets a custom *http.Client on an HTTP transport configured
// earlier in the option list.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if transport, ok := c.transport.(*HTTPTransport); ok {
			transport.httpClient = client
		}
	}
}

// WithClock injects the clock driving cache eviction and retry delays.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithRetryPolicy sets the default retry policy for calls that do not carry
// their own.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithRetryCondition sets a custom retry condition. See SkipLogicalFailures
// for the common override.
func WithRetryCondition(condition RetryCondition) Option {
	return func(c *Client) {
		c.retryCond = condition
	}
}

// WithCache sets the default TTL for cacheable calls, keeping the in-memory
// cache.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCustomCache sets a custom cache implementation and default TTL.
func WithCustomCache(cache ResultCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithoutCache disables result caching entirely; cacheable call options are
// ignored.
func WithoutCache() Option {
	return func(c *Client) {
		c.cache = nil
		c.cacheDisabled = true
	}
}

// WithKeyFunc sets a custom key derivation for cache and de-duplication.
func WithKeyFunc(fn KeyFunc) Option {
	return func(c *Client) {
		c.keyFunc = fn
	}
}

// WithMiddleware adds middleware to the client at construction.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithIdentityProvider binds the provider consulted by auth injection.
func WithIdentityProvider(provider IdentityProvider) Option {
	return func(c *Client) {
		c.authProvider = provider
	}
}

// WithMetrics enables Prometheus metrics collection on the default registry.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithSimpleLogger enables debug logging with the console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateTransportConfig()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}

	return nil
}

func (c *Client) validateTransportConfig() []string {
	var problems []string

	if c.transport == nil {
		problems = append(problems, "transport must be configured")
	}
	if c.clock == nil {
		problems = append(problems, "clock cannot be nil")
	}
	if c.keyFunc == nil {
		problems = append(problems, "key function cannot be nil")
	}

	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.retryPolicy.MaxAttempts < 1 {
		problems = append(problems, "retry MaxAttempts must be at least 1")
	}
	if c.retryPolicy.BaseDelay < 0 {
		problems = append(problems, "retry BaseDelay must be non-negative")
	}
	if c.retryPolicy.MaxDelay > 0 && c.retryPolicy.MaxDelay < c.retryPolicy.BaseDelay {
		problems = append(problems, "retry MaxDelay must be greater than or equal to BaseDelay")
	}
	if c.retryPolicy.Jitter < 0 || c.retryPolicy.Jitter > 1 {
		problems = append(problems, "retry Jitter must be between 0 and 1")
	}
	if c.retryCond == nil {
		problems = append(problems, "retry condition cannot be nil")
	}

	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.cache != nil && c.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive when cache is enabled")
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.retryPolicy.MaxAttempts > 100 {
		problems = append(problems, "retry MaxAttempts > 100 may cause excessive resource usage")
	}
	if c.retryPolicy.BaseDelay > 10*time.Minute {
		problems = append(problems, "retry BaseDelay > 10m may cause very long delays")
	}
	if c.cache != nil && c.cacheTTL > 24*time.Hour {
		problems = append(problems, "cacheTTL > 24h may cause stale data issues")
	}

	return problems
}
