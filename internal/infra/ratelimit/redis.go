package ratelimit

import (
	"context"
	"errors"
	"time"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"

	"github.com/redis/go-redis/v9"
)

var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisLimiter shares fixed windows across authorizer replicas.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, now func() time.Time) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, prefix: prefix, now: now}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, length time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	windowMillis := length.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	result, err := allowScript.Run(ctx, r.client, []string{r.key(key)}, windowMillis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return domain.RateLimitDecision{}, errors.New("unexpected redis rate limit response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("invalid redis counter response")
	}
	ttlMillis, _ := values[1].(int64)
	return decide(current, ttlMillis, limit, r.now()), nil
}

func (r *RedisLimiter) key(key string) string {
	if r.prefix == "" {
		return "ratelimit:" + key
	}
	return r.prefix + ":ratelimit:" + key
}

func decide(current, ttlMillis int64, limit int, now time.Time) domain.RateLimitDecision {
	resetAt := now
	if ttlMillis > 0 {
		resetAt = now.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

// NewFromConfig picks the shared limiter when the store runs on redis and
// the per-process one otherwise. The returned close func is never nil.
func NewFromConfig(cfg config.Config) (domain.RateLimiter, func() error, error) {
	if cfg.Store.Backend != config.BackendRedis {
		return NewMemoryLimiter(MemoryConfig{}), func() error { return nil }, nil
	}
	if cfg.Store.RedisAddr == "" {
		return nil, nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	limiter, err := NewRedisLimiter(client, cfg.Store.RedisKeyPrefix, nil)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return limiter, client.Close, nil
}
