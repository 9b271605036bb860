package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLimiter(t *testing.T, max int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := time.UnixMilli(1_700_000_000_000)
	l := NewRedisLimiter(rdb, max, window, "rate:")
	l.now = func() time.Time { return clock }
	return l, mr, &clock
}

func TestRedisLimiterAdmitsDeniesAndRecovers(t *testing.T) {
	ctx := context.Background()
	l, mr, clock := newTestRedisLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, err := l.Check(ctx, "10.0.0.1"); err != nil || !ok {
			t.Fatalf("attempt %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	for i := 0; i < 4; i++ {
		if ok, err := l.Check(ctx, "10.0.0.1"); err != nil || ok {
			t.Fatalf("over limit attempt %d: ok=%v err=%v", i+1, ok, err)
		}
	}

	members, err := mr.ZMembers("rate:10.0.0.1")
	if err != nil {
		t.Fatalf("ZMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("denied attempts must not be recorded, window holds %d", len(members))
	}

	if ok, err := l.Check(ctx, "10.0.0.2"); err != nil || !ok {
		t.Fatalf("other identifiers are independent: ok=%v err=%v", ok, err)
	}

	*clock = clock.Add(time.Minute + time.Millisecond)
	mr.FastForward(time.Minute + time.Millisecond)
	if mr.Exists("rate:10.0.0.1") {
		t.Fatalf("window key should expire with the window")
	}
	if ok, err := l.Check(ctx, "10.0.0.1"); err != nil || !ok {
		t.Fatalf("admission should resume after the window: ok=%v err=%v", ok, err)
	}
}

func TestRedisLimiterSlidesOldestOut(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestRedisLimiter(t, 2, time.Minute)
	start := *clock

	if ok, _ := l.Check(ctx, "ip"); !ok {
		t.Fatalf("first attempt denied")
	}
	*clock = start.Add(30 * time.Second)
	if ok, _ := l.Check(ctx, "ip"); !ok {
		t.Fatalf("second attempt denied")
	}
	*clock = start.Add(45 * time.Second)
	if ok, _ := l.Check(ctx, "ip"); ok {
		t.Fatalf("third attempt inside the window admitted")
	}

	// only the first attempt has left the window
	*clock = start.Add(time.Minute + time.Millisecond)
	if ok, _ := l.Check(ctx, "ip"); !ok {
		t.Fatalf("attempt after the oldest expired should be admitted")
	}
	if ok, _ := l.Check(ctx, "ip"); ok {
		t.Fatalf("window should be full again")
	}
}

func TestRedisLimiterReportsStoreErrors(t *testing.T) {
	l, mr, _ := newTestRedisLimiter(t, 1, time.Minute)
	mr.Close()

	if _, err := l.Check(context.Background(), "ip"); err == nil {
		t.Fatalf("expected an error once the store is gone")
	}
}
