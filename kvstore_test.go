package sambung

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryKeyValueStore(t *testing.T) {
	store := NewMemoryKeyValueStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "session:user", "user@example.com"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := store.Get(ctx, "session:user")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "user@example.com" {
		t.Errorf("Expected stored value, got %q", value)
	}

	if err := store.Delete(ctx, "session:user"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "session:user"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("Expected key gone after delete")
	}

	// Deleting an absent key is a no-op.
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Expected no-op delete, got %v", err)
	}
}

func newTestRedisStore(t *testing.T, prefix string) (*RedisKeyValueStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKeyValueStore(client, prefix), mr
}

func TestRedisKeyValueStore(t *testing.T) {
	store, _ := newTestRedisStore(t, "")
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := store.Set(ctx, "session:blob", `{"plan":"free"}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := store.Get(ctx, "session:blob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != `{"plan":"free"}` {
		t.Errorf("Expected stored value, got %q", value)
	}

	if err := store.Delete(ctx, "session:blob"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "session:blob"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("Expected key gone after delete")
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisKeyValueStorePrefix(t *testing.T) {
	store, mr := newTestRedisStore(t, "myapp")
	ctx := context.Background()

	if err := store.Set(ctx, "session:user", "user@example.com"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if !mr.Exists("myapp:session:user") {
		t.Error("Expected the prefixed key in Redis")
	}
	if mr.Exists("session:user") {
		t.Error("Expected no unprefixed key in Redis")
	}
}

func TestRedisKeyValueStoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t, "")
	ctx := context.Background()

	mr.Close()

	if _, err := store.Get(ctx, "any"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable on Get, got %v", err)
	}
	if err := store.Set(ctx, "any", "value"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable on Set, got %v", err)
	}
	if err := store.Delete(ctx, "any"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable on Delete, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable on Ping, got %v", err)
	}
}

func TestSessionManagerWithRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t, "sambung")

	backend := newFakeBackend()
	backend.respond("user.login", loginResponse)
	client := New(WithTransport(backend), WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	manager := NewSessionManager(client, store)
	defer manager.Close()

	if _, err := manager.Login(context.Background(), "user@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// A second manager over the same Redis restores the session.
	restored := NewSessionManager(New(WithTransport(backend)), store)
	defer restored.Close()

	if !restored.IsAuthenticated() {
		t.Error("Expected session restored from Redis")
	}
}
