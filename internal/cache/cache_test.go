package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// fakeClock drives MemoryCache expiry in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

type cacheFixture struct {
	cache   Cache
	advance func(time.Duration)
}

func fixtures(t *testing.T) map[string]func(t *testing.T) cacheFixture {
	return map[string]func(t *testing.T) cacheFixture{
		"memory": func(t *testing.T) cacheFixture {
			clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
			c := NewMemoryCache()
			c.now = clock.Now
			return cacheFixture{cache: c, advance: clock.Advance}
		},
		"redis": func(t *testing.T) cacheFixture {
			mr := miniredis.RunT(t)
			c, err := NewRedisCache(RedisConfig{Addr: mr.Addr()})
			if err != nil {
				t.Fatalf("NewRedisCache: %v", err)
			}
			t.Cleanup(func() { c.Close() })
			return cacheFixture{cache: c, advance: mr.FastForward}
		},
	}
}

func TestCache_SetGetDelete(t *testing.T) {
	for name, mk := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := mk(t)

			if _, err := f.cache.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
				t.Fatalf("Get(missing) err = %v, want ErrCacheMiss", err)
			}

			if err := f.cache.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := f.cache.Get(ctx, "k")
			if err != nil || string(got) != "v" {
				t.Fatalf("Get = %q, %v", got, err)
			}

			if err := f.cache.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := f.cache.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
			}
			if err := f.cache.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete(missing) = %v, want nil", err)
			}
			if err := f.cache.Ping(ctx); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	for name, mk := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := mk(t)

			f.cache.Set(ctx, "session", []byte("x"), 10*time.Second)
			f.advance(8 * time.Second)
			if _, err := f.cache.Get(ctx, "session"); err != nil {
				t.Errorf("Get before expiry = %v, want hit", err)
			}

			// Overwriting resets the TTL.
			f.cache.Set(ctx, "session", []byte("y"), 10*time.Second)
			f.advance(8 * time.Second)
			if got, err := f.cache.Get(ctx, "session"); err != nil || string(got) != "y" {
				t.Errorf("Get after overwrite = %q, %v", got, err)
			}

			f.advance(5 * time.Second)
			if _, err := f.cache.Get(ctx, "session"); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Get after expiry = %v, want ErrCacheMiss", err)
			}
		})
	}
}

func TestCache_GetOrSet(t *testing.T) {
	for name, mk := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := mk(t)

			calls := 0
			compute := func() ([]byte, error) {
				calls++
				return []byte("snapshot"), nil
			}

			for i := 0; i < 3; i++ {
				v, err := f.cache.GetOrSet(ctx, "stats", time.Minute, compute)
				if err != nil || string(v) != "snapshot" {
					t.Fatalf("GetOrSet = %q, %v", v, err)
				}
			}
			if calls != 1 {
				t.Errorf("compute called %d times, want 1", calls)
			}

			boom := errors.New("boom")
			if _, err := f.cache.GetOrSet(ctx, "other", time.Minute, func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
				t.Errorf("GetOrSet error = %v, want boom", err)
			}
			if _, err := f.cache.Get(ctx, "other"); !errors.Is(err, ErrCacheMiss) {
				t.Error("failed compute should not store a value")
			}
		})
	}
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	mr.Set("other:app", "keep")

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr(), KeyPrefix: "test"})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	c.Set(ctx, "mine", []byte("x"), time.Minute)
	if !mr.Exists("test:mine") {
		t.Fatal("expected prefixed key in redis")
	}
	if _, err := c.Get(ctx, "app"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get(app) = %v, want ErrCacheMiss", err)
	}
	if err := c.Delete(ctx, "mine"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists("test:mine") || !mr.Exists("other:app") {
		t.Error("Delete touched the wrong keys")
	}
}

func TestMemoryCache_SweepsExpiredOnWrite(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewMemoryCache()
	c.now = clock.Now

	c.Set(ctx, "old", []byte("x"), time.Second)
	clock.Advance(time.Minute)
	for i := 1; i < sweepEvery; i++ {
		c.Set(ctx, "live", []byte("y"), time.Hour)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after sweep, want 1", c.Len())
	}
}

func TestOpen(t *testing.T) {
	c, err := Open("memory", RedisConfig{})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("Open(memory) = %T", c)
	}

	mr := miniredis.RunT(t)
	c, err = Open("Redis", RedisConfig{Addr: mr.Addr(), KeyPrefix: "t"})
	if err != nil {
		t.Fatalf("Open(redis): %v", err)
	}
	defer c.Close()
	if _, ok := c.(*RedisCache); !ok {
		t.Errorf("Open(redis) = %T", c)
	}

	if _, err := Open("memcached", RedisConfig{}); err == nil {
		t.Error("Open(memcached) succeeded")
	}
}
