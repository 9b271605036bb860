package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestMemoryProviderExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryProvider()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "q", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "q")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "q"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped on access")
	}
}

func TestMemoryProviderSetNX(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider()

	ok, err := c.SetNX(ctx, "k", []byte("a"), 0)
	if err != nil || !ok {
		t.Fatalf("first SetNX should store: %v %v", ok, err)
	}
	ok, _ = c.SetNX(ctx, "k", []byte("b"), 0)
	if ok {
		t.Fatalf("second SetNX must not overwrite")
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestMemoryProviderReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider()
	value := []byte("abc")
	_ = c.Set(ctx, "k", value, 0)
	value[0] = 'x'

	got, _ := c.Get(ctx, "k")
	got[1] = 'y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cache must not alias caller slices, got %q", again)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryProvider()
	type entry struct {
		Ref   string `json:"ref"`
		Score int    `json:"score"`
	}
	if err := SetJSON(ctx, c, "search", []entry{{Ref: "a/b", Score: 2}}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out []entry
	if err := GetJSON(ctx, c, "search", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out) != 1 || out[0].Ref != "a/b" || out[0].Score != 2 {
		t.Fatalf("unexpected decoded value %+v", out)
	}
	if err := GetJSON(ctx, NoopProvider{}, "search", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("noop provider should miss, got %v", err)
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(context.Background(), BackendRedis, RedisConfig{
		URL:         "redis://127.0.0.1:1/0",
		DialTimeout: 200 * time.Millisecond,
	}, logger)
	if _, ok := p.(*MemoryProvider); !ok {
		t.Fatalf("expected memory fallback, got %T", p)
	}
	if _, ok := New(context.Background(), BackendNone, RedisConfig{}, logger).(NoopProvider); !ok {
		t.Fatalf("backend none should disable caching")
	}
}
