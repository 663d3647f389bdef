package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts attempts per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// RedisLimiter is a fixed window limiter shared through Redis. It fails open
// when Redis is unreachable.
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisLimiter constructs a RedisLimiter allowing limit attempts per window.
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix, logger: logger}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	open := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetAt: time.Now().UTC().Add(l.window)}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing", zap.String("key", key), zap.Error(err))
		return open
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return open
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = l.window.Milliseconds()
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(count) <= l.limit,
		Count:     int(count),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.Now().UTC().Add(time.Duration(ttlMs) * time.Millisecond),
	}
}

// Middleware throttles requests per client address. A nil limiter disables it.
func Middleware(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		decision := limiter.Allow(c.Request.Context(), c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retryAfter := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			observability.IncLoginAttempt("rate_limited")
			logger.Warn("login rate limited", zap.String("client_ip", c.ClientIP()), zap.Int("count", decision.Count))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
			return
		}
		c.Next()
	}
}
