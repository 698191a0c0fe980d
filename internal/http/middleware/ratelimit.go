package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	start time.Time
	count int
}

// windowTable counts hits per key in fixed windows, in process
type windowTable struct {
	mu        sync.Mutex
	window    time.Duration
	clients   map[string]*clientInfo
	lastSweep time.Time
}

func newWindowTable(window time.Duration) *windowTable {
	return &windowTable{
		window:    window,
		clients:   make(map[string]*clientInfo),
		lastSweep: time.Now(),
	}
}

// hit records one request for key and returns the count in its window
func (t *windowTable) hit(key string) int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastSweep) > t.window {
		for k, ci := range t.clients {
			if now.Sub(ci.start) > t.window {
				delete(t.clients, k)
			}
		}
		t.lastSweep = now
	}
	ci, ok := t.clients[key]
	if !ok || now.Sub(ci.start) > t.window {
		ci = &clientInfo{start: now}
		t.clients[key] = ci
	}
	ci.count++
	return ci.count
}

// SimpleRateLimit is the in-process fixed-window limiter used when Redis is
// not configured. Each call gets its own table.
func SimpleRateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	table := newWindowTable(window)

	return func(c *gin.Context) {
		if table.hit(c.ClientIP()) > maxRequests {
			RLBlocked.WithLabelValues(scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(scope).Inc()
		c.Next()
	}
}

// RateLimit picks the Redis limiter when a client is configured and the
// in-process one otherwise.
func RateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient != nil {
		return RedisRateLimit(scope, maxRequests, window)
	}
	return SimpleRateLimit(scope, maxRequests, window)
}
