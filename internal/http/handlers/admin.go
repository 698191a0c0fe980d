package handlers

import (
	"net/http"
	"strconv"

	"teos_mining/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const adminActor = "admin_api"

func (h *Handler) AdminPendingPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	payments, err := h.Tiers.PendingPayments(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) AdminConfirmPayment(c *gin.Context) {
	h.verifyPayment(c, true)
}

func (h *Handler) AdminRejectPayment(c *gin.Context) {
	h.verifyPayment(c, false)
}

func (h *Handler) verifyPayment(c *gin.Context, approved bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, domain.Invalid("id", "invalid payment id"))
		return
	}
	ctx := c.Request.Context()
	p, acc, err := h.Tiers.VerifyPayment(ctx, id, approved, adminActor)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.LogAdminAction(ctx, adminActor, "payment_verify", map[string]interface{}{
		"payment_id": id.String(),
		"approved":   approved,
		"ip":         c.ClientIP(),
	})

	body := gin.H{"payment": p}
	if acc != nil {
		body["account"] = acc
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) AdminSweepTiers(c *gin.Context) {
	ids, err := h.Tiers.SweepExpiredTiers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	c.JSON(http.StatusOK, gin.H{"reset": ids, "count": len(ids)})
}

func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.Admin.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AdminAccount looks an account up by id, email or referral code
func (h *Handler) AdminAccount(c *gin.Context) {
	info, err := h.Admin.GetAccount(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
