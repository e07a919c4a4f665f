// Package sambung is a session-aware client for JSON operation backends: it
// turns a logical "call this operation with this payload" intent into a
// reliable network exchange and tracks the authenticated session across
// restarts. Reliability primitives compose around a single fixed endpoint:
//
//   - Result caching with per-call TTL and timer-driven eviction
//   - De-duplication of concurrent identical calls (one exchange, shared outcome)
//   - Retries with exponential backoff and a bounded attempt budget
//   - Middleware chain for cross-cutting concerns (auth injection, request IDs)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Every collaborator (transport, clock, key-value store) injectable for tests
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware & pluggable cache / metrics
//
// Typical usage:
//
//	client := sambung.New(
//	    sambung.WithHTTPTransport("https://api.example.com/exec", apiKey),
//	    sambung.WithRetryPolicy(sambung.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}),
//	    sambung.WithCache(5*time.Minute),
//	)
//	sessions := sambung.NewSessionManager(client, sambung.NewMemoryKeyValueStore())
//	defer sessions.Close()
//
//	if _, err := sessions.Login(ctx, "a@b.com", secret); err != nil {
//	    // surface err.Error() to the user
//	}
//	res, err := client.Call(ctx, "dashboard.stats", nil, sambung.CallOptions{Cacheable: true})
//
// Failures always carry a human-readable message and never hang: a call is
// bounded by the retry budget, not a wall-clock deadline. Callers needing a
// hard deadline should layer one through the context.
package sambung
