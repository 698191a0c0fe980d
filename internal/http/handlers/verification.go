package handlers

import (
	"net/http"

	"teos_mining/internal/domain"

	"github.com/gin-gonic/gin"
)

// RecordVerificationStep marks one civic step, e.g. POST /verification/petition_signed
func (h *Handler) RecordVerificationStep(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	cmd := domain.RecordVerificationStep{
		AccountID: sess.Account.ID,
		Step:      domain.VerificationStep(c.Param("step")),
	}
	missing, err := h.Accounts.RecordVerificationStep(c.Request.Context(), sess, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	if missing == nil {
		missing = []domain.VerificationStep{}
	}
	c.JSON(http.StatusOK, gin.H{
		"verification":   sess.Account.Verification,
		"civic_verified": sess.Account.CivicVerified,
		"missing_steps":  missing,
	})
}
