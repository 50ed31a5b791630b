package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"apiregistry/internal/config"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryLimiterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	limiter := NewMemoryLimiter(MemoryConfig{Now: clock.Now})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "10.0.0.1", 2, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if decision.Remaining != 1-i {
			t.Fatalf("expected remaining %d, got %d", 1-i, decision.Remaining)
		}
	}

	decision, err := limiter.Allow(ctx, "10.0.0.1", 2, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected third request to be limited")
	}
	if got := decision.RetryAfter(clock.Now()); got != 60 {
		t.Fatalf("expected retry after 60s, got %d", got)
	}

	other, err := limiter.Allow(ctx, "10.0.0.2", 2, time.Minute)
	if err != nil || !other.Allowed {
		t.Fatalf("expected other key to be allowed, got %+v err=%v", other, err)
	}

	clock.Advance(time.Minute)
	decision, err = limiter.Allow(ctx, "10.0.0.1", 2, time.Minute)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !decision.Allowed || decision.Remaining != 1 {
		t.Fatalf("expected a fresh window, got %+v", decision)
	}
}

func TestMemoryLimiterDisabled(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryConfig{})
	for i := 0; i < 5; i++ {
		decision, err := limiter.Allow(context.Background(), "k", 0, time.Second)
		if err != nil || !decision.Allowed {
			t.Fatalf("expected zero limit to disable limiting, got %+v err=%v", decision, err)
		}
	}
}

func TestMemoryLimiterCapacity(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	limiter := NewMemoryLimiter(MemoryConfig{Now: clock.Now, MaxKeys: 1})
	ctx := context.Background()

	if _, err := limiter.Allow(ctx, "a", 1, time.Second); err != nil {
		t.Fatalf("allow a: %v", err)
	}
	if _, err := limiter.Allow(ctx, "b", 1, time.Second); !errors.Is(err, errCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, err := limiter.Allow(ctx, "b", 1, time.Second); err != nil {
		t.Fatalf("expected expired key to be swept, got %v", err)
	}
}

func TestDecideFromRedisCounters(t *testing.T) {
	now := time.Unix(100, 0)
	allowed := decide(3, 1500, 5, now)
	if !allowed.Allowed || allowed.Remaining != 2 {
		t.Fatalf("unexpected decision %+v", allowed)
	}
	if !allowed.ResetAt.Equal(now.Add(1500 * time.Millisecond)) {
		t.Fatalf("unexpected reset %v", allowed.ResetAt)
	}
	limited := decide(6, -1, 5, now)
	if limited.Allowed || limited.Remaining != 0 || !limited.ResetAt.Equal(now) {
		t.Fatalf("unexpected decision %+v", limited)
	}
}

func TestRedisLimiterKey(t *testing.T) {
	limiter := &RedisLimiter{prefix: "registry"}
	if got := limiter.key("10.0.0.1"); got != "registry:ratelimit:10.0.0.1" {
		t.Fatalf("unexpected key %q", got)
	}
	limiter.prefix = ""
	if got := limiter.key("10.0.0.1"); got != "ratelimit:10.0.0.1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewFromConfigMemory(t *testing.T) {
	limiter, closeFn, err := NewFromConfig(config.Config{Store: config.Store{Backend: config.BackendDynamoDB}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := limiter.(*MemoryLimiter); !ok {
		t.Fatalf("expected memory limiter, got %T", limiter)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewFromConfigRedisRequiresAddr(t *testing.T) {
	if _, _, err := NewFromConfig(config.Config{Store: config.Store{Backend: config.BackendRedis}}); err == nil {
		t.Fatalf("expected error without redis addr")
	}
}
