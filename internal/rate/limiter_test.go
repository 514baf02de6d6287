package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, Config{Prefix: "t", MaxFailures: max, Window: time.Minute}), mr
}

func TestLimiterBlocksAfterBudget(t *testing.T) {
	l, _ := newLimiterTest(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if _, err := l.RecordFailure(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := l.Check(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other client limited: %v", err)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newLimiterTest(t, 1)
	ctx := context.Background()

	if _, err := l.RecordFailure(ctx, "c"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if ttl := mr.TTL("t:f:c"); ttl != time.Minute {
		t.Fatalf("expected window ttl 1m, got %v", ttl)
	}
	if err := l.Check(ctx, "c"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := l.Check(ctx, "c"); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterResetAndEmptyClient(t *testing.T) {
	l, _ := newLimiterTest(t, 1)
	ctx := context.Background()

	if n, err := l.RecordFailure(ctx, ""); err != nil || n != 0 {
		t.Fatalf("empty client: n=%d err=%v", n, err)
	}
	_, _ = l.RecordFailure(ctx, "c")
	if err := l.Reset(ctx, "c"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Check(ctx, "c"); err != nil {
		t.Fatalf("expected cleared counter, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newLimiterTest(t, 1)
	mr.Close()
	if err := l.Check(context.Background(), "c"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
