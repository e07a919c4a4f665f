package sambung

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// staticIdentity is an IdentityProvider test double.
type staticIdentity struct {
	identity string
	active   bool
}

func (p *staticIdentity) CurrentIdentity() (string, bool) {
	return p.identity, p.active
}

// countingTransport returns the same canned body for every exchange and counts
// how many exchanges happened.
func countingTransport(body string, count *int32) Transport {
	return TransportFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		atomic.AddInt32(count, 1)
		return []byte(body), nil
	})
}

func TestClientCallEndToEnd(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Request body is not JSON: %v", err)
		}
		fmt.Fprint(w, `{"success":true,"message":"ok","stats":{"posts":3}}`)
	}))
	defer server.Close()

	client := New(WithHTTPTransport(server.URL+"/api", "secret-credential"))
	if !client.IsValid() {
		t.Fatalf("Expected valid client, got %v", client.ValidationError())
	}

	result, err := client.Call(context.Background(), "dashboard.stats", Payload{"range": "7d"}, CallOptions{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if !result.Success || result.Message != "ok" {
		t.Errorf("Unexpected result: %+v", result)
	}
	if _, ok := result.ObjectField("stats"); !ok {
		t.Error("Expected stats object in result fields")
	}
	if gotPath != "/api" {
		t.Errorf("Expected POST to /api, got %s", gotPath)
	}
	if gotKey != "secret-credential" {
		t.Errorf("Expected credential query parameter, got %q", gotKey)
	}
	if gotBody["operation"] != "dashboard.stats" || gotBody["range"] != "7d" {
		t.Errorf("Unexpected wire body: %v", gotBody)
	}
}

func TestClientCacheServesRepeatedCalls(t *testing.T) {
	var exchanges int32
	client := New(WithTransport(countingTransport(`{"success":true,"count":1}`, &exchanges)))

	opts := CallOptions{Cacheable: true, TTL: time.Minute}
	first, err := client.Call(context.Background(), "posts.list", Payload{"page": 1}, opts)
	if err != nil {
		t.Fatalf("First call failed: %v", err)
	}

	// Swap in a failing transport: a cached result must be served regardless.
	client.transport = TransportFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		atomic.AddInt32(&exchanges, 1)
		return nil, errors.New("backend down")
	})

	second, err := client.Call(context.Background(), "posts.list", Payload{"page": 1}, opts)
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if second != first {
		t.Error("Expected the cached result to be returned")
	}
	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("Expected exactly 1 exchange, got %d", n)
	}
}

func TestClientCacheKeyIgnoresPayloadOrder(t *testing.T) {
	var exchanges int32
	client := New(WithTransport(countingTransport(`{"success":true}`, &exchanges)))

	opts := CallOptions{Cacheable: true, TTL: time.Minute}
	if _, err := client.Call(context.Background(), "posts.list", Payload{"page": 1, "tags": []string{"go"}}, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, err := client.Call(context.Background(), "posts.list", Payload{"tags": []string{"go"}, "page": 1}, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("Expected equivalent payloads to share one cache entry, got %d exchanges", n)
	}
}

func TestClientCacheExpiry(t *testing.T) {
	mock := clock.NewMock()
	var exchanges int32
	client := New(
		WithTransport(countingTransport(`{"success":true}`, &exchanges)),
		WithClock(mock),
	)

	opts := CallOptions{Cacheable: true, TTL: time.Minute}
	if _, err := client.Call(context.Background(), "dashboard.stats", nil, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	mock.Add(61 * time.Second)

	if _, err := client.Call(context.Background(), "dashboard.stats", nil, opts); err != nil {
		t.Fatalf("Call after expiry failed: %v", err)
	}
	if n := atomic.LoadInt32(&exchanges); n != 2 {
		t.Errorf("Expected exactly one fresh exchange after expiry, got %d total", n)
	}
}

func TestClientDeduplicatesConcurrentCalls(t *testing.T) {
	var exchanges int32
	gate := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once

	client := New(WithTransport(TransportFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		atomic.AddInt32(&exchanges, 1)
		startOnce.Do(func() { close(started) })
		<-gate
		return []byte(`{"success":true,"message":"shared"}`), nil
	})))

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = client.Call(context.Background(), "posts.list", nil, CallOptions{})
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = client.Call(context.Background(), "posts.list", nil, CallOptions{})
	}()

	waitFor(t, func() bool { return client.dedup.Pending("posts.list") })
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("Expected concurrent identical calls to share 1 exchange, got %d", n)
	}
	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("Call %d failed: %v", i, errs[i])
		}
		if results[i].Message != "shared" {
			t.Errorf("Call %d did not receive the shared result", i)
		}
	}
}

func TestClientRetriesLogicalFailureByDefault(t *testing.T) {
	var exchanges int32
	client := New(
		WithTransport(countingTransport(`{"success":false,"message":"not ready"}`, &exchanges)),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	)

	_, err := client.Call(context.Background(), "post.publish", nil, CallOptions{})
	if !IsRetryExhausted(err) {
		t.Fatalf("Expected retry exhaustion, got %v", err)
	}
	if !IsLogicalFailure(errors.Unwrap(err.(*ClientError))) {
		t.Error("Expected the aggregated error to wrap the logical failure")
	}
	if n := atomic.LoadInt32(&exchanges); n != 3 {
		t.Errorf("Expected logical failures to be retried up to the budget, got %d exchanges", n)
	}
}

func TestClientSkipLogicalFailures(t *testing.T) {
	var exchanges int32
	client := New(
		WithTransport(countingTransport(`{"success":false,"message":"invalid credentials"}`, &exchanges)),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}),
		WithRetryCondition(SkipLogicalFailures),
	)

	_, err := client.Call(context.Background(), "user.login", nil, CallOptions{})
	if !IsLogicalFailure(err) {
		t.Fatalf("Expected logical failure, got %v", err)
	}
	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("Expected a single attempt with SkipLogicalFailures, got %d", n)
	}
}

func TestClientPerCallRetryOverride(t *testing.T) {
	var exchanges int32
	client := New(
		WithTransport(countingTransport(`{"success":false}`, &exchanges)),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}),
	)

	_, err := client.Call(context.Background(), "op", nil, CallOptions{
		Retry: &RetryPolicy{MaxAttempts: 1},
	})
	if !IsRetryExhausted(err) {
		t.Fatalf("Expected retry exhaustion, got %v", err)
	}
	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("Expected the per-call policy to cap attempts at 1, got %d", n)
	}
}

func TestClientAuthInjection(t *testing.T) {
	var gotBody map[string]any
	client := New(WithTransport(TransportFunc(func(ctx context.Context, body []byte) ([]byte, error) {
		decoded := map[string]any{}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, err
		}
		gotBody = decoded
		return []byte(`{"success":true}`), nil
	})))

	provider := &staticIdentity{identity: "user@example.com", active: true}
	client.SetIdentityProvider(provider)

	if _, err := client.Call(context.Background(), "posts.list", nil, CallOptions{}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if gotBody["identity"] != "user@example.com" {
		t.Errorf("Expected injected identity, got %v", gotBody["identity"])
	}

	// Anonymous provider: no identity on the wire.
	provider.active = false
	if _, err := client.Call(context.Background(), "posts.list", nil, CallOptions{}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, present := gotBody["identity"]; present {
		t.Error("Expected no identity field while anonymous")
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	var order []string
	client := New(
		WithTransport(countingTransport(`{"success":true}`, new(int32))),
		WithMiddleware(func(ctx context.Context, env *Envelope, next CallFunc) (*Result, error) {
			order = append(order, "outer")
			return next(ctx, env)
		}),
	)
	client.Use(func(ctx context.Context, env *Envelope, next CallFunc) (*Result, error) {
		order = append(order, "inner")
		return next(ctx, env)
	})

	if _, err := client.Call(context.Background(), "op", nil, CallOptions{}); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("Expected configuration order outermost-first, got %v", order)
	}
}

func TestClientWithoutCache(t *testing.T) {
	var exchanges int32
	client := New(
		WithTransport(countingTransport(`{"success":true}`, &exchanges)),
		WithoutCache(),
	)

	opts := CallOptions{Cacheable: true, TTL: time.Minute}
	for i := 0; i < 2; i++ {
		if _, err := client.Call(context.Background(), "op", nil, opts); err != nil {
			t.Fatalf("Call failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&exchanges); n != 2 {
		t.Errorf("Expected every call to reach the transport with caching disabled, got %d", n)
	}
}

func TestClientInvalidateCacheByOperation(t *testing.T) {
	var exchanges int32
	client := New(WithTransport(countingTransport(`{"success":true}`, &exchanges)))

	opts := CallOptions{Cacheable: true, TTL: time.Minute}
	if _, err := client.Call(context.Background(), "posts.list", Payload{"page": 1}, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, err := client.Call(context.Background(), "dashboard.stats", nil, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	client.InvalidateCache(func(key string) bool {
		return len(key) >= len("posts.list") && key[:len("posts.list")] == "posts.list"
	})

	if _, err := client.Call(context.Background(), "posts.list", Payload{"page": 1}, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if _, err := client.Call(context.Background(), "dashboard.stats", nil, opts); err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	// 2 initial + 1 refetch of the invalidated operation.
	if n := atomic.LoadInt32(&exchanges); n != 3 {
		t.Errorf("Expected 3 exchanges, got %d", n)
	}
}

func TestClientValidation(t *testing.T) {
	client := New()

	if client.IsValid() {
		t.Fatal("Expected a client without transport to be invalid")
	}

	_, err := client.Call(context.Background(), "op", nil, CallOptions{})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeValidation {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestClientUnserializablePayload(t *testing.T) {
	client := New(WithTransport(countingTransport(`{"success":true}`, new(int32))))

	_, err := client.Call(context.Background(), "op", Payload{"bad": make(chan int)}, CallOptions{})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeValidation {
		t.Errorf("Expected validation error for unserializable payload, got %v", err)
	}
}

func TestClientTransportStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(
		WithHTTPTransport(server.URL, ""),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 1}),
	)

	_, err := client.Call(context.Background(), "op", nil, CallOptions{})
	if !IsRetryExhausted(err) {
		t.Fatalf("Expected retry exhaustion, got %v", err)
	}

	var clientErr *ClientError
	if !errors.As(errors.Unwrap(err.(*ClientError)), &clientErr) {
		t.Fatal("Expected wrapped transport error")
	}
	if clientErr.Type != ErrorTypeTransport || clientErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected transport error with status 503, got %+v", clientErr)
	}
}
