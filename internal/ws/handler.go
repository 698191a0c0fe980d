package ws

import (
	"context"
	"net/http"

	"teos_mining/internal/logger"
	"teos_mining/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Authenticator resolves a session token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.TokenClaims, error)
}

var _ Authenticator = (*service.IdentityService)(nil)

// HandleWS upgrades an authenticated request into a push socket. The token
// travels in the query string because browsers cannot set headers on a
// websocket handshake.
func HandleWS(hub *Hub, auth Authenticator, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(claims.AccountID, conn, hub)
		hub.Register(client)
		go client.Run()
	}
}
