package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is the subscription level controlling the daily reward size
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// TierDuration is how long a verified upgrade lasts before the sweep reverts it
const TierDuration = 30 * 24 * time.Hour

var tierRank = map[Tier]int{
	TierFree:  0,
	TierBasic: 1,
	TierPro:   2,
}

// ParseTier returns the tier and whether it belongs to the closed set
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	_, ok := tierRank[t]
	return t, ok
}

// Valid reports whether t is one of free, basic, pro
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Rank orders tiers; unknown tiers rank as free
func (t Tier) Rank() int {
	return tierRank[t]
}

// Above reports whether t is strictly higher than other
func (t Tier) Above(other Tier) bool {
	return t.Rank() > other.Rank()
}

// VerificationStep is one of the civic actions required before mining
type VerificationStep string

const (
	StepPetitionSigned   VerificationStep = "petition_signed"
	StepTelegramJoined   VerificationStep = "telegram_joined"
	StepFacebookFollowed VerificationStep = "facebook_followed"
	StepXFollowed        VerificationStep = "x_followed"
)

// VerificationSteps lists the required steps in display order
var VerificationSteps = []VerificationStep{
	StepPetitionSigned,
	StepTelegramJoined,
	StepFacebookFollowed,
	StepXFollowed,
}

// Valid reports whether s is a known verification step
func (s VerificationStep) Valid() bool {
	for _, step := range VerificationSteps {
		if step == s {
			return true
		}
	}
	return false
}

// VerificationFlags holds the completion state of each civic step
type VerificationFlags map[VerificationStep]bool

// Missing returns the steps not yet completed, in display order
func (f VerificationFlags) Missing() []VerificationStep {
	var missing []VerificationStep
	for _, step := range VerificationSteps {
		if !f[step] {
			missing = append(missing, step)
		}
	}
	return missing
}

// Complete reports whether all steps are done
func (f VerificationFlags) Complete() bool {
	return len(f.Missing()) == 0
}

// Account is the per-user mining profile
type Account struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	Email           string            `db:"email" json:"email"`
	Tier            Tier              `db:"tier" json:"tier"`
	TierUpgradedAt  *time.Time        `db:"tier_upgraded_at" json:"tier_upgraded_at,omitempty"`
	TierExpiresAt   *time.Time        `db:"tier_expires_at" json:"tier_expires_at,omitempty"`
	LastClaimAt     *time.Time        `db:"last_claim_at" json:"last_claim_at,omitempty"`
	TotalClaims     int64             `db:"total_claims" json:"total_claims"`
	Verification    VerificationFlags `json:"verification"`
	CivicVerified   bool              `db:"civic_verified" json:"civic_verified"`
	CivicVerifiedAt *time.Time        `db:"civic_verified_at" json:"civic_verified_at,omitempty"`
	ReferralCode    string            `db:"referral_code" json:"referral_code"`
	ReferredBy      *uuid.UUID        `db:"referred_by" json:"referred_by,omitempty"`
	TotalReferrals  int64             `db:"total_referrals" json:"total_referrals"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// EffectiveTier is the tier that applies at now: an upgrade whose expiry
// has passed counts as free even before the sweep resets it.
func (a *Account) EffectiveTier(now time.Time) Tier {
	if !a.Tier.Valid() {
		return TierFree
	}
	if a.Tier != TierFree && a.TierExpiresAt != nil && now.After(*a.TierExpiresAt) {
		return TierFree
	}
	return a.Tier
}

// NewAccount returns an account initialised with the defaults applied on
// first authentication.
func NewAccount(id uuid.UUID, email, referralCode string, now time.Time) *Account {
	return &Account{
		ID:           id,
		Email:        email,
		Tier:         TierFree,
		Verification: VerificationFlags{},
		ReferralCode: referralCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Identity is the credential record owned by the identity service
type Identity struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	Email               string    `db:"email" json:"email"`
	PasswordHash        string    `db:"password_hash" json:"-"`
	PendingReferralCode string    `db:"pending_referral_code" json:"-"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
