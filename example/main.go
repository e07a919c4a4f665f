// Minimal example for sambung demonstrating an environment-configured client,
// a session login, and a cached dashboard call. Point SAMBUNG_ENDPOINT at a
// backend speaking the operation envelope protocol before running.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ambiyansyah-risyal/sambung"
)

func main() {
	cfg, err := sambung.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client := sambung.New(append(cfg.Options(),
		sambung.WithMetrics(),
		sambung.WithSimpleLogger(),
	)...)
	if !client.IsValid() {
		log.Fatalf("invalid client config: %v", client.ValidationError())
	}

	sessions := sambung.NewSessionManager(client, sambung.NewMemoryKeyValueStore(), cfg.SessionOptions()...)
	defer sessions.Close()

	ctx := context.Background()

	if _, err := sessions.Login(ctx, "demo@example.com", "secret"); err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Println("authenticated:", sessions.IsAuthenticated())

	// Cacheable read: a second call within the TTL is served locally and two
	// concurrent calls share one exchange.
	stats, err := client.Call(ctx, "dashboard.stats", nil, sambung.CallOptions{
		Cacheable: true,
		TTL:       2 * time.Minute,
	})
	if err != nil {
		log.Fatalf("dashboard.stats failed: %v", err)
	}
	fmt.Println("stats:", stats.Fields)

	// Per-call retry override for a flaky mutation.
	if _, err := client.Call(ctx, "post.publish", sambung.Payload{"title": "hello"}, sambung.CallOptions{
		Retry: &sambung.RetryPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond},
	}); err != nil {
		log.Printf("publish failed: %v", err)
	}

	if err := sessions.Logout(ctx); err != nil {
		log.Printf("logout: %v", err)
	}
}
