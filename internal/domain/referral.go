package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferralStatus of a referrer/referred pair
type ReferralStatus string

const (
	ReferralStatusActive   ReferralStatus = "active"
	ReferralStatusInactive ReferralStatus = "inactive"
)

// ReferralBonusRate is the share of a referred account's primary-token
// claim credited to the referrer.
var ReferralBonusRate = decimal.RequireFromString("0.05")

// ReferralCodePrefix starts every referral code
const ReferralCodePrefix = "TEOS"

// Referral links a referrer to an account it brought in
type Referral struct {
	ID          int64           `db:"id" json:"id"`
	ReferrerID  uuid.UUID       `db:"referrer_id" json:"referrer_id"`
	ReferredID  uuid.UUID       `db:"referred_id" json:"referred_id"`
	Status      ReferralStatus  `db:"status" json:"status"`
	BonusEarned decimal.Decimal `db:"bonus_earned" json:"bonus_earned"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ReferredAccount is a referral joined with the referred account's public data
type ReferredAccount struct {
	Referral
	Email       string     `json:"email"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastClaimAt *time.Time `json:"last_claim_at,omitempty"`
}

// ReferralStats summarises a referrer's active referrals
type ReferralStats struct {
	TotalReferrals int             `json:"total_referrals"`
	BonusEarned    decimal.Decimal `json:"bonus_earned"`
}

// ReferralLeader is one row of the referral leaderboard
type ReferralLeader struct {
	Rank           int       `json:"rank"`
	AccountID      uuid.UUID `json:"account_id"`
	Email          string    `json:"email"`
	ReferralCode   string    `json:"referral_code"`
	TotalReferrals int64     `json:"total_referrals"`
}
