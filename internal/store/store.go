package store

import (
	"context"
	"time"

	"teos_mining/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations. Each one
// unwraps to domain.ErrValidation.
var (
	ErrEmailTaken           = &domain.ValidationError{Field: "email", Reason: "already registered"}
	ErrAccountExists        = &domain.ValidationError{Field: "account", Reason: "already exists"}
	ErrReferralCodeTaken    = &domain.ValidationError{Field: "referral_code", Reason: "already in use"}
	ErrAlreadyReferred      = &domain.ValidationError{Field: "referral_code", Reason: "account already has a referrer"}
	ErrSelfReferral         = &domain.ValidationError{Field: "referral_code", Reason: "cannot use your own referral code"}
	ErrDuplicateTransaction = &domain.ValidationError{Field: "transaction_ref", Reason: "transaction already submitted"}
	ErrPaymentProcessed     = &domain.ValidationError{Field: "payment", Reason: "payment already processed"}
	ErrTierNotHigher        = &domain.ValidationError{Field: "tier", Reason: "requested tier is not higher than the current tier"}
)

// Decline reasons returned verbatim inside domain.RejectedError
const (
	ReasonCooldown    = "Claim cooldown has not finished yet"
	ReasonNotVerified = "Account must complete civic verification before mining"
)

// Accounts is the account store contract
type Accounts interface {
	CreateAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	RecordVerificationStep(ctx context.Context, cmd domain.RecordVerificationStep, now time.Time) (*domain.Account, error)
	CountAccounts(ctx context.Context) (int64, error)
}

// Mining is the balance store plus the atomic claim
type Mining interface {
	// ExecuteClaim atomically checks eligibility and cooldown at now,
	// advances last-claim, and credits every token by the rewards of the
	// effective tier. Declines come back as *domain.RejectedError.
	ExecuteClaim(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.ClaimOutcome, error)
	// CreditBalance applies cmd unless its idempotency key was already
	// used, in which case applied is false and no balance changes.
	CreditBalance(ctx context.Context, cmd domain.CreditBalance, now time.Time) (ev *domain.ClaimEvent, applied bool, err error)
	GetBalances(ctx context.Context, accountID uuid.UUID) (domain.Balances, error)
	ListClaimEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ClaimEvent, error)
	CountClaimsSince(ctx context.Context, since time.Time) (int64, error)
}

// Referrals is the referral store contract
type Referrals interface {
	// ApplyReferral links referred to referrer and bumps the referrer's
	// counter in one step.
	ApplyReferral(ctx context.Context, referrerID, referredID uuid.UUID, now time.Time) (*domain.Referral, error)
	GetActiveReferral(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error)
	// AddReferralBonus adds amount to bonus_earned once per bonus event
	// key. Returns false when the key was already counted.
	AddReferralBonus(ctx context.Context, referralID int64, bonusKey string, amount decimal.Decimal) (bool, error)
	ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]domain.ReferredAccount, error)
	ReferralStats(ctx context.Context, referrerID uuid.UUID) (domain.ReferralStats, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.ReferralLeader, error)
}

// Payments is the payment intake and tier lifecycle contract
type Payments interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, accountID uuid.UUID) ([]domain.Payment, error)
	ListPendingPayments(ctx context.Context, limit int) ([]domain.Payment, error)
	// ConfirmPayment marks a pending payment confirmed and advances the
	// account tier in the same transaction.
	ConfirmPayment(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Payment, *domain.Account, error)
	RejectPayment(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Payment, error)
	SweepExpiredTiers(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Identities stores credentials
type Identities interface {
	CreateIdentity(ctx context.Context, id *domain.Identity) error
	GetIdentity(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error)
}

// Audit stores audit log entries
type Audit interface {
	CreateAuditLog(ctx context.Context, log *domain.AuditLog) error
	ListAuditLogs(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.AuditLog, error)
}

// Store defines the contract that every backend (Postgres, memory) must satisfy
type Store interface {
	Accounts
	Mining
	Referrals
	Payments
	Identities
	Audit

	Ping(ctx context.Context) error
	Close()
}
