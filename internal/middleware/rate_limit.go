package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quecocinohoy/backend/internal/types"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Key prefix for Redis keys
	KeyPrefix string
}

// RateLimiter counts requests per key in fixed windows stored in Redis.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		now:    time.Now,
	}
}

// NewGenerationRateLimiter counts recipe generations per user per hour.
func NewGenerationRateLimiter(redisClient *redis.Client) *RateLimiter {
	return NewRateLimiter(redisClient, RateLimitConfig{
		Window:    time.Hour,
		KeyPrefix: "rate_limit:recipe_generation",
	})
}

// Allow counts one request for key and reports whether it fits in limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int) (types.QuotaStatus, error) {
	windowStart := rl.now().Truncate(rl.config.Window)
	redisKey := rl.key(key, windowStart)

	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.QuotaStatus{}, err
	}

	count := int(incrCmd.Val())
	return types.QuotaStatus{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   windowStart.Add(rl.config.Window),
	}, nil
}

// releaseScript decrements a live counter only, so a refund after the window
// expired does not leave a negative key without a TTL behind.
var releaseScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 and tonumber(redis.call("GET", KEYS[1])) > 0 then
	return redis.call("DECR", KEYS[1])
end
return 0
`)

// Release gives back one request counted by Allow in the window charged
// belongs to.
func (rl *RateLimiter) Release(ctx context.Context, key string, charged types.QuotaStatus) error {
	windowStart := charged.ResetAt.Add(-rl.config.Window)
	return releaseScript.Run(ctx, rl.redis, []string{rl.key(key, windowStart)}).Err()
}

func (rl *RateLimiter) key(key string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, key, windowStart.Unix())
}
