package sambung

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryKeyValueStore is a process-local KeyValueStore. It does not survive
// restarts; use RedisKeyValueStore for durable session persistence.
type MemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKeyValueStore creates an empty in-memory store.
func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{
		values: make(map[string]string),
	}
}

// Get implements KeyValueStore.
func (s *MemoryKeyValueStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set implements KeyValueStore.
func (s *MemoryKeyValueStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete implements KeyValueStore. Deleting an absent key is a no-op.
func (s *MemoryKeyValueStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// RedisKeyValueStore persists values in Redis under a key prefix, so the
// session survives process restarts and can be shared between instances.
type RedisKeyValueStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisKeyValueStore creates a store backed by the given Redis client.
// prefix namespaces every key; empty means no namespace.
func NewRedisKeyValueStore(client redis.UniversalClient, prefix string) *RedisKeyValueStore {
	return &RedisKeyValueStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *RedisKeyValueStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Get implements KeyValueStore.
func (s *RedisKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return value, nil
}

// Set implements KeyValueStore. Values have no TTL; the session manager owns
// expiry semantics.
func (s *RedisKeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := s.redis.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete implements KeyValueStore.
func (s *RedisKeyValueStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check.
func (s *RedisKeyValueStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
