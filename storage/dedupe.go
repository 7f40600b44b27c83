package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers idempotency keys per session so retried commands are
// applied once.
type Deduper interface {
	// Add records the key and returns true if it was newly added.
	Add(ctx context.Context, sessionID, key string) (bool, error)
	// AddMany records a batch of keys. A repeated key within the batch is
	// new only at its first position.
	AddMany(ctx context.Context, sessionID string, keys []string) ([]bool, error)
	// Remove forgets a key, used when applying the command failed.
	Remove(ctx context.Context, sessionID, key string) error
}

// RedisDeduper stores idempotency keys in Redis with a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(sessionID, key string) string {
	return fmt.Sprintf("idem:%s:%s", sessionID, key)
}

func (r *RedisDeduper) Add(ctx context.Context, sessionID, key string) (bool, error) {
	added, err := r.client.SetNX(ctx, r.key(sessionID, key), 1, r.ttl).Result()
	if err != nil {
		return false, unavailable("add idempotency key", err)
	}
	return added, nil
}

func (r *RedisDeduper) Remove(ctx context.Context, sessionID, key string) error {
	if err := r.client.Del(ctx, r.key(sessionID, key)).Err(); err != nil {
		return unavailable("remove idempotency key", err)
	}
	return nil
}

// AddMany records the keys with one pipelined SETNX per key.
func (r *RedisDeduper) AddMany(ctx context.Context, sessionID string, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pending := make([]*redis.BoolCmd, len(keys))
	if _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			pending[i] = pipe.SetNX(ctx, r.key(sessionID, key), 1, r.ttl)
		}
		return nil
	}); err != nil {
		return nil, unavailable("add idempotency keys", err)
	}
	added := make([]bool, len(keys))
	for i, cmd := range pending {
		added[i] = cmd.Val()
	}
	return added, nil
}

// MemoryDeduper is a process-local Deduper with the same TTL semantics.
type MemoryDeduper struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	keys map[string]time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, now: time.Now, keys: make(map[string]time.Time)}
}

func (m *MemoryDeduper) Add(_ context.Context, sessionID, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(m.now(), sessionID+":"+key), nil
}

func (m *MemoryDeduper) AddMany(_ context.Context, sessionID string, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	added := make([]bool, len(keys))
	for i, key := range keys {
		added[i] = m.add(now, sessionID+":"+key)
	}
	return added, nil
}

func (m *MemoryDeduper) add(now time.Time, k string) bool {
	if exp, ok := m.keys[k]; ok && (m.ttl <= 0 || now.Before(exp)) {
		return false
	}
	m.keys[k] = now.Add(m.ttl)
	if len(m.keys)%256 == 0 {
		m.purge(now)
	}
	return true
}

func (m *MemoryDeduper) Remove(_ context.Context, sessionID, key string) error {
	m.mu.Lock()
	delete(m.keys, sessionID+":"+key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDeduper) purge(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for k, exp := range m.keys {
		if !now.Before(exp) {
			delete(m.keys, k)
		}
	}
}
