package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetReferralCode returns the caller's referral code
func (h *Handler) GetReferralCode(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": sess.Account.ReferralCode})
}

// GetReferralLink returns the shareable sign-up link
func (h *Handler) GetReferralLink(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	code := sess.Account.ReferralCode
	c.JSON(http.StatusOK, gin.H{
		"code": code,
		"link": h.Referrals.Link(code, c.Query("campaign")),
	})
}

// GetReferralStats returns totals and the list of referred accounts
func (h *Handler) GetReferralStats(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	overview, err := h.Referrals.Overview(c.Request.Context(), sess.Account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) GetReferralReport(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	report, err := h.Referrals.Report(c.Request.Context(), sess.Account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type ApplyReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyReferralCode links the caller to a referrer after sign-up
func (h *Handler) ApplyReferralCode(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	ref, err := h.Referrals.ApplyCode(c.Request.Context(), sess.Account.ID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "referral": ref})
}

func (h *Handler) GetReferralLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	board, err := h.Referrals.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}
