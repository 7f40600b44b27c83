package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client
}

func TestRedisFlags(t *testing.T) {
	m, client := newRedis(t)
	flags := NewRedisFlags(client, "")
	ctx := context.Background()

	got, err := flags.Get(ctx, "browser-1")
	if err != nil || got {
		t.Fatalf("expected unset flag, got %v %v", got, err)
	}
	if err := flags.Set(ctx, "browser-1", true); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if !m.Exists("tutorial:browser-1") {
		t.Fatalf("expected namespaced key, have %v", m.Keys())
	}
	if got, _ := flags.Get(ctx, "browser-1"); !got {
		t.Fatalf("expected flag to be set")
	}
	if got, _ := flags.Get(ctx, "browser-2"); got {
		t.Fatalf("flag leaked across clients")
	}
	if err := flags.Set(ctx, "browser-1", false); err != nil {
		t.Fatalf("clear flag: %v", err)
	}
	if got, _ := flags.Get(ctx, "browser-1"); got {
		t.Fatalf("expected flag to be cleared")
	}
	if err := flags.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRedisFlagsUnavailable(t *testing.T) {
	m, client := newRedis(t)
	flags := NewRedisFlags(client, "t")
	m.Close()

	if _, err := flags.Get(context.Background(), "c"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := flags.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from ping, got %v", err)
	}
}

func TestMemoryFlags(t *testing.T) {
	flags := NewMemoryFlags()
	ctx := context.Background()
	_ = flags.Set(ctx, "c", true)
	if got, _ := flags.Get(ctx, "c"); !got {
		t.Fatalf("expected flag to be set")
	}
	_ = flags.Set(ctx, "c", false)
	if got, _ := flags.Get(ctx, "c"); got {
		t.Fatalf("expected flag to be cleared")
	}
}

func TestRedisDeduperAddMany(t *testing.T) {
	_, client := newRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()
	keys := []string{"k1", "k2", "k3"}

	first, err := deduper.AddMany(ctx, "s1", keys)
	if err != nil {
		t.Fatalf("add many: %v", err)
	}
	for i, added := range first {
		if !added {
			t.Fatalf("expected key %d to be added", i)
		}
	}

	second, err := deduper.AddMany(ctx, "s1", keys)
	if err != nil {
		t.Fatalf("second add many: %v", err)
	}
	for i, added := range second {
		if added {
			t.Fatalf("expected key %d to be duplicate on second call", i)
		}
	}

	repeated, err := deduper.AddMany(ctx, "s1", []string{"k4", "k4"})
	if err != nil {
		t.Fatalf("repeated add many: %v", err)
	}
	if !repeated[0] || repeated[1] {
		t.Fatalf("expected only the first copy of a repeated key to be new, got %v", repeated)
	}
}

func TestMemoryDeduperAddMany(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	ctx := context.Background()

	got, err := d.AddMany(ctx, "s", []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("add many: %v", err)
	}
	if !got[0] || !got[1] || got[2] {
		t.Fatalf("unexpected results %v", got)
	}
	if added, _ := d.Add(ctx, "s", "b"); added {
		t.Fatalf("batch key must be visible to Add")
	}
	if got, _ := d.AddMany(ctx, "s", nil); got != nil {
		t.Fatalf("expected nil for empty batch, got %v", got)
	}
}

func TestRedisDeduperNamespacingAndTTL(t *testing.T) {
	m, client := newRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if added, err := deduper.Add(ctx, "s1", "k"); err != nil || !added {
		t.Fatalf("first add: %v %v", added, err)
	}
	if added, _ := deduper.Add(ctx, "s2", "k"); !added {
		t.Fatalf("key must be scoped per session")
	}
	if added, _ := deduper.Add(ctx, "s1", "k"); added {
		t.Fatalf("expected duplicate")
	}

	m.FastForward(2 * time.Minute)
	if added, _ := deduper.Add(ctx, "s1", "k"); !added {
		t.Fatalf("expected key to expire")
	}

	if err := deduper.Remove(ctx, "s1", "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if added, _ := deduper.Add(ctx, "s1", "k"); !added {
		t.Fatalf("expected key to be re-addable after remove")
	}
}

func TestMemoryDeduperTTL(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if added, _ := d.Add(ctx, "s", "k"); !added {
		t.Fatalf("expected first add")
	}
	if added, _ := d.Add(ctx, "s", "k"); added {
		t.Fatalf("expected duplicate")
	}
	now = now.Add(time.Minute)
	if added, _ := d.Add(ctx, "s", "k"); !added {
		t.Fatalf("expected key to expire")
	}
	_ = d.Remove(ctx, "s", "k")
	if added, _ := d.Add(ctx, "s", "k"); !added {
		t.Fatalf("expected add after remove")
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		conn     string
		addr     string
		password string
		tls      bool
		wantErr  bool
	}{
		{conn: "redis://:secret@localhost:6380/0", addr: "localhost:6380", password: "secret"},
		{conn: "cache.local:6380,password=pw,ssl=True", addr: "cache.local:6380", password: "pw", tls: true},
		{conn: "cache.local:6379,abortConnect=false", addr: "cache.local:6379"},
		{conn: "  ", wantErr: true},
	}
	for _, tt := range tests {
		opts, err := RedisOptions(tt.conn)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("RedisOptions(%q) expected error", tt.conn)
			}
			continue
		}
		if err != nil {
			t.Fatalf("RedisOptions(%q): %v", tt.conn, err)
		}
		if opts.Addr != tt.addr || opts.Password != tt.password || (opts.TLSConfig != nil) != tt.tls {
			t.Fatalf("RedisOptions(%q) = addr %q password %q tls %v", tt.conn, opts.Addr, opts.Password, opts.TLSConfig != nil)
		}
	}
}
