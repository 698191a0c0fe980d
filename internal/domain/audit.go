package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog represents an audit log entry for tracking important actions
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	AccountID *uuid.UUID             `db:"account_id" json:"account_id,omitempty"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth         = "auth"
	AuditCategoryMining       = "mining"
	AuditCategoryReferral     = "referral"
	AuditCategoryPayment      = "payment"
	AuditCategoryVerification = "verification"
	AuditCategoryAdmin        = "admin"
)

// Audit actions
const (
	// Auth actions
	AuditActionSignUp = "signup"
	AuditActionLogin  = "login"
	AuditActionLogout = "logout"

	// Mining actions
	AuditActionClaim         = "claim"
	AuditActionReferralBonus = "referral_bonus"

	// Referral actions
	AuditActionReferralApply = "referral_apply"

	// Verification actions
	AuditActionVerificationStep = "verification_step"
	AuditActionCivicVerified    = "civic_verified"

	// Payment actions
	AuditActionPaymentSubmit  = "payment_submit"
	AuditActionPaymentConfirm = "payment_confirm"
	AuditActionPaymentReject  = "payment_reject"

	// Admin actions
	AuditActionTierSweep = "tier_sweep"
)
