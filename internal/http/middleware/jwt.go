package middleware

import (
	"context"
	"net/http"
	"strings"

	"teos_mining/internal/logger"
	"teos_mining/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	accountIDKey = "account_id"
	tokenKey     = "token"
)

// Authenticator resolves a bearer token to its claims
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.TokenClaims, error)
}

// JWT requires a valid "Authorization: Bearer <token>" header and stores
// the account id and raw token on the context.
func JWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(accountIDKey, claims.AccountID)
		c.Set(tokenKey, token)
		c.Request = c.Request.WithContext(logger.ContextWithAccountID(c.Request.Context(), claims.AccountID.String()))
		c.Next()
	}
}

// AccountID returns the authenticated account set by JWT
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(accountIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Token returns the raw bearer token set by JWT
func Token(c *gin.Context) string {
	return c.GetString(tokenKey)
}
