package handlers

import (
	"net/http"

	"teos_mining/internal/http/middleware"
	"teos_mining/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Identity  *service.IdentityService
	Accounts  *service.AccountService
	Claims    *service.ClaimService
	Referrals *service.ReferralService
	Tiers     *service.TierService
	Admin     *service.AdminService
	Audit     *service.AuditService
}

// session loads the caller's account and balances. On failure the
// response has already been written.
func (h *Handler) session(c *gin.Context) (*service.Session, bool) {
	id, ok := middleware.AccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	sess, err := h.Accounts.LoadSession(c.Request.Context(), id, middleware.Token(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return sess, true
}
