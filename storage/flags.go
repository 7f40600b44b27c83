package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// FlagStore keeps boolean per-client flags such as "tutorial dismissed".
type FlagStore interface {
	Get(ctx context.Context, client string) (bool, error)
	Set(ctx context.Context, client string, value bool) error
	Ping(ctx context.Context) error
}

// RedisFlags stores flags as Redis keys; a missing key reads as false.
type RedisFlags struct {
	client *redis.Client
	prefix string
}

// NewRedisFlags creates a flag store namespacing keys with prefix.
func NewRedisFlags(client *redis.Client, prefix string) *RedisFlags {
	if prefix == "" {
		prefix = "tutorial"
	}
	return &RedisFlags{client: client, prefix: prefix}
}

func (f *RedisFlags) key(client string) string {
	return f.prefix + ":" + client
}

func (f *RedisFlags) Get(ctx context.Context, client string) (bool, error) {
	err := f.client.Get(ctx, f.key(client)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("get flag", err)
	}
	return true, nil
}

func (f *RedisFlags) Set(ctx context.Context, client string, value bool) error {
	var err error
	if value {
		err = f.client.Set(ctx, f.key(client), 1, 0).Err()
	} else {
		err = f.client.Del(ctx, f.key(client)).Err()
	}
	if err != nil {
		return unavailable("set flag", err)
	}
	return nil
}

func (f *RedisFlags) Ping(ctx context.Context) error { return ping(ctx, f.client) }

// MemoryFlags is a process-local FlagStore.
type MemoryFlags struct {
	mu    sync.RWMutex
	flags map[string]struct{}
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{flags: make(map[string]struct{})}
}

func (f *MemoryFlags) Get(_ context.Context, client string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.flags[client]
	return ok, nil
}

func (f *MemoryFlags) Set(_ context.Context, client string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value {
		f.flags[client] = struct{}{}
	} else {
		delete(f.flags, client)
	}
	return nil
}

func (f *MemoryFlags) Ping(context.Context) error { return nil }
