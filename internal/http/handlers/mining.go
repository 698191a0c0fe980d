package handlers

import (
	"net/http"
	"strconv"

	"teos_mining/internal/domain"
	"teos_mining/internal/mining"

	"github.com/gin-gonic/gin"
)

// Rewards returns the reward table for every tier
func (h *Handler) Rewards(c *gin.Context) {
	table := make(map[domain.Tier]mining.Rewards, 3)
	for _, t := range []domain.Tier{domain.TierFree, domain.TierBasic, domain.TierPro} {
		table[t] = mining.RewardsFor(t)
	}
	c.JSON(http.StatusOK, gin.H{
		"rewards":             table,
		"cooldown_seconds":    int64(mining.Cooldown.Seconds()),
		"referral_bonus_rate": domain.ReferralBonusRate,
	})
}

func (h *Handler) MiningStatus(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	st, err := h.Claims.Status(sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Claim(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	res, err := h.Claims.ExecuteClaim(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MiningHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	evs, err := h.Claims.History(c.Request.Context(), sess.Account.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}
