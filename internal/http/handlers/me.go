package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	acc := sess.Account
	c.JSON(http.StatusOK, gin.H{
		"account":        acc,
		"effective_tier": acc.EffectiveTier(sess.LoadedAt),
		"balances":       sess.Balances,
		"missing_steps":  acc.Verification.Missing(),
	})
}

// AuditLog returns the caller's recent audit trail
func (h *Handler) AuditLog(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	logs, err := h.Audit.AccountAuditLogs(c.Request.Context(), sess.Account.ID, 50)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
