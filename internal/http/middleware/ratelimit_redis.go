package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"teos_mining/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter initializes a shared Redis client used by the middleware.
// If connection fails, redisClient remains nil and the middleware fails open.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis rate limiter disabled", "addr", addr, "error", err)
		return
	}
	redisClient = client
}

// UseRedis shares an already connected client with the rate limiters
func UseRedis(client *redis.Client) {
	redisClient = client
}

// RedisEnabled reports whether the Redis limiters are active
func RedisEnabled() bool {
	return redisClient != nil
}

// RedisRateLimit implements a fixed-window limiter per client IP using INCR/EXPIRE.
// key format: rl:<scope>:<window_seconds>:<ip>
func RedisRateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}
		key := "rl:" + scope + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		if !allowRedis(c, key, maxRequests, window, "X-RateLimit") {
			RLBlocked.WithLabelValues(scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}
		RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}

// allowRedis increments key and reports whether the caller is within limit.
// Redis errors allow the request.
func allowRedis(c *gin.Context, key string, limit int, window time.Duration, headerPrefix string) bool {
	ctx := c.Request.Context()
	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		c.Header(headerPrefix+"-Error", "redis-error")
		return true
	}
	if val == 1 {
		redisClient.Expire(ctx, key, window)
	}
	remaining := int64(limit) - val
	if remaining < 0 {
		remaining = 0
	}
	c.Header(headerPrefix+"-Limit", strconv.Itoa(limit))
	c.Header(headerPrefix+"-Remaining", strconv.FormatInt(remaining, 10))
	return val <= int64(limit)
}
