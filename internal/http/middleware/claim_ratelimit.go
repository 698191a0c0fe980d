package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ClaimRateLimit limits claim attempts per account (not per IP). Requires
// JWT to run first. Without Redis the count is kept in process.
func ClaimRateLimit(maxClaims int, window time.Duration) gin.HandlerFunc {
	local := newWindowTable(window)

	return func(c *gin.Context) {
		id, ok := AccountID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var allowed bool
		if redisClient != nil {
			key := "claim_rl:" + id.String() + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
			allowed = allowRedis(c, key, maxClaims, window, "X-ClaimRateLimit")
		} else {
			allowed = local.hit(id.String()) <= maxClaims
		}

		if !allowed {
			RLBlocked.WithLabelValues("claim").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "claim rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}
		RLRequests.WithLabelValues("claim").Inc()
		c.Next()
	}
}
