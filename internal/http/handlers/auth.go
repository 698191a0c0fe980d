package handlers

import (
	"net/http"

	"teos_mining/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type SignUpRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	// a ?ref= from the referral link is kept for the first sign-in
	if req.ReferralCode == "" {
		req.ReferralCode = c.Query("ref")
	}

	identity, err := h.Identity.SignUp(c.Request.Context(), req.Email, req.Password, req.ReferralCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":    identity.ID,
		"email": identity.Email,
	})
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	res, err := h.Identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	sess, err := h.Accounts.LoadSession(ctx, res.Identity.ID, res.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      res.Token,
		"expires_at": res.Claims.ExpiresAt,
		"account":    sess.Account,
		"balances":   sess.Balances,
	})
}

func (h *Handler) SignOut(c *gin.Context) {
	if err := h.Identity.SignOut(c.Request.Context(), middleware.Token(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
