package handlers

import (
	"errors"
	"net/http"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/mining"
	"teos_mining/internal/service"

	"github.com/gin-gonic/gin"
)

// respondError maps the domain error taxonomy onto HTTP responses
func respondError(c *gin.Context, err error) {
	var (
		notEligible *domain.NotEligibleError
		cooldown    *domain.CooldownError
		rejected    *domain.RejectedError
		invalid     *domain.ValidationError
	)
	switch {
	case errors.As(err, &notEligible):
		c.JSON(http.StatusForbidden, gin.H{
			"error":         "verification incomplete",
			"missing_steps": notEligible.MissingSteps,
		})
	case errors.As(err, &cooldown):
		msg := "claim cooldown active"
		if cooldown.Reason != "" {
			msg = cooldown.Reason
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             msg,
			"remaining_seconds": int64(cooldown.Remaining.Seconds()),
			"remaining":         mining.FormatRemaining(cooldown.Remaining),
		})
	case errors.As(err, &rejected):
		c.JSON(http.StatusConflict, gin.H{"error": rejected.Reason})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &invalid):
		body := gin.H{"error": invalid.Error()}
		if invalid.Field != "" {
			body["field"] = invalid.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrTransient):
		logger.WithContext(c.Request.Context()).Warn("transient failure", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable", "retryable": true})
	default:
		logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
