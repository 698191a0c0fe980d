package handlers

import (
	"net/http"
	"strings"

	"teos_mining/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetUpgradeInfo returns pricing, wallets and the caller's payments
func (h *Handler) GetUpgradeInfo(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	info, err := h.Tiers.Info(c.Request.Context(), sess.Account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type SubmitPaymentRequest struct {
	Tier           string `json:"tier" binding:"required"`
	Currency       string `json:"currency" binding:"required"`
	TransactionRef string `json:"transaction_ref" binding:"required"`
	WalletAddress  string `json:"wallet_address"`
}

func (h *Handler) SubmitPayment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier, currency and transaction_ref are required"})
		return
	}

	tier, ok := domain.ParseTier(strings.ToLower(strings.TrimSpace(req.Tier)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier " + req.Tier, "field": "tier"})
		return
	}

	p, err := h.Tiers.SubmitPayment(c.Request.Context(), domain.SubmitPayment{
		AccountID:      sess.Account.ID,
		Tier:           tier,
		Currency:       req.Currency,
		TransactionRef: req.TransactionRef,
		WalletAddress:  req.WalletAddress,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment": p,
		"message": "Payment submitted. Your tier will be upgraded once the transaction is verified.",
	})
}

func (h *Handler) GetPayments(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	payments, err := h.Tiers.PaymentHistory(c.Request.Context(), sess.Account.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
