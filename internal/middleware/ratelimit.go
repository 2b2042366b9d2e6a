package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"botadmin/internal/dto/resp"
	"botadmin/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a token bucket per client IP.
type RateLimiterConfig struct {
	Limit     int    // tokens per second
	Burst     int    // bucket capacity, defaults to Limit
	KeyPrefix string // redis key prefix, one bucket per prefix+IP
}

const (
	defaultLimit     = 5
	redisTimeout     = 100 * time.Millisecond
	localIdleTimeout = 10 * time.Minute
)

// tokenBucketScript implements the Token Bucket algorithm.
// Input: ARGV[1]=rate, ARGV[2]=capacity, ARGV[3]=now, ARGV[4]=requested
// Output: { allowed, remaining, reset_after }
var tokenBucketScript = redis.NewScript(`
local tokens_key = KEYS[1]
local ts_key = KEYS[2]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local fill_time = capacity / rate
local ttl = math.ceil(fill_time * 2)

local last_tokens = tonumber(redis.call("get", tokens_key))
if last_tokens == nil then last_tokens = capacity end

local last_ts = tonumber(redis.call("get", ts_key))
if last_ts == nil then last_ts = now end

local delta = math.max(0, now - last_ts)
local filled_tokens = math.min(capacity, last_tokens + (delta * rate))
local allowed = 0
local remaining = filled_tokens
local reset_after = 0

if filled_tokens >= requested then
    allowed = 1
    filled_tokens = filled_tokens - requested
    remaining = filled_tokens
else
    reset_after = math.ceil((requested - filled_tokens) / rate)
end

if allowed == 1 then
    redis.call("set", tokens_key, filled_tokens, "EX", ttl)
    redis.call("set", ts_key, now, "EX", ttl)
end

return { allowed, remaining, reset_after }
`)

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localBuckets is the in-process fallback used while redis is unavailable.
type localBuckets struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*localLimiter
	lastSweep time.Time
}

func newLocalBuckets(limit rate.Limit, burst int) *localBuckets {
	return &localBuckets{
		limit:     limit,
		burst:     burst,
		buckets:   make(map[string]*localLimiter),
		lastSweep: time.Now(),
	}
}

func (b *localBuckets) get(ip string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastSweep) > localIdleTimeout {
		for key, l := range b.buckets {
			if now.Sub(l.lastSeen) > localIdleTimeout {
				delete(b.buckets, key)
			}
		}
		b.lastSweep = now
	}

	l, ok := b.buckets[ip]
	if !ok {
		l = &localLimiter{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.buckets[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

// RateLimitMiddleware throttles by client IP through a redis token bucket
// and falls back to in-process buckets when redis fails.
func RateLimitMiddleware(rdb redis.Scripter, cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Limit
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "botadmin:ratelimit:"
	}
	local := newLocalBuckets(rate.Limit(cfg.Limit), cfg.Burst)
	limitHeader := fmt.Sprintf("%d", cfg.Limit)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		keyPrefix := cfg.KeyPrefix + clientIP
		keys := []string{keyPrefix + ":tokens", keyPrefix + ":ts"}
		now := float64(time.Now().UnixMicro()) / 1e6
		args := []any{float64(cfg.Limit), float64(cfg.Burst), now, 1}

		ctx, cancel := context.WithTimeout(c.Request.Context(), redisTimeout)
		result, err := tokenBucketScript.Run(ctx, rdb, keys, args...).Result()
		cancel()

		c.Header("X-RateLimit-Limit", limitHeader)

		if err != nil {
			logger.Warn("redis rate limit failed, using local fallback",
				zap.Error(err),
				zap.String("ip", clientIP))

			limiter := local.get(clientIP)
			if !limiter.Allow() {
				c.Header("X-RateLimit-Remaining", "0")
				c.Header("X-RateLimit-Reset", "1")
				throttled(c, 1)
				return
			}
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int(limiter.Tokens())))
			c.Next()
			return
		}

		resSlice, ok := result.([]any)
		if !ok || len(resSlice) != 3 {
			logger.Error("invalid redis rate limit response", zap.Any("response", result))
			c.Next()
			return
		}

		allowed := helperInt(resSlice[0]) == 1
		remaining := helperInt(resSlice[1])
		resetAfter := helperInt(resSlice[2])

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Duration(resetAfter)*time.Second).Unix()))

		if !allowed {
			throttled(c, max(resetAfter, 1))
			return
		}
		c.Next()
	}
}

func throttled(c *gin.Context, retryAfter int64) {
	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, resp.ErrorResp{
		Detail: fmt.Sprintf("Request was throttled. Expected available in %d seconds.", retryAfter),
		Code:   "throttled",
	})
}

func helperInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}
