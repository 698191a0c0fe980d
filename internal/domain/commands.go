package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordVerificationStep marks one civic step done for an account
type RecordVerificationStep struct {
	AccountID uuid.UUID
	Step      VerificationStep
}

func (c RecordVerificationStep) Validate() error {
	if c.AccountID == uuid.Nil {
		return Invalid("account_id", "required")
	}
	if !c.Step.Valid() {
		return Invalid("step", "unknown verification step "+string(c.Step))
	}
	return nil
}

// AdvanceTier moves an account to a strictly higher tier
type AdvanceTier struct {
	AccountID uuid.UUID
	Tier      Tier
}

func (c AdvanceTier) Validate() error {
	if c.AccountID == uuid.Nil {
		return Invalid("account_id", "required")
	}
	if !c.Tier.Valid() || c.Tier == TierFree {
		return Invalid("tier", "must be basic or pro")
	}
	return nil
}

// CreditBalance adds a positive amount to one token balance. The
// idempotency key makes redelivered credits no-ops.
type CreditBalance struct {
	AccountID      uuid.UUID
	Token          Token
	Amount         decimal.Decimal
	Tier           Tier
	ReferralBonus  bool
	IdempotencyKey string
}

func (c CreditBalance) Validate() error {
	if c.AccountID == uuid.Nil {
		return Invalid("account_id", "required")
	}
	if !c.Token.Valid() {
		return Invalid("token", "unknown token "+string(c.Token))
	}
	if !c.Amount.IsPositive() {
		return Invalid("amount", "must be positive")
	}
	if strings.TrimSpace(c.IdempotencyKey) == "" {
		return Invalid("idempotency_key", "required")
	}
	return nil
}

// SubmitPayment is a manual payment proof for a tier upgrade
type SubmitPayment struct {
	AccountID      uuid.UUID
	Tier           Tier
	Currency       string
	TransactionRef string
	WalletAddress  string
}

var (
	base58Ref       = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{80,90}$`)
	alphanumericRef = regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`)
)

func (c SubmitPayment) Validate() error {
	if c.AccountID == uuid.Nil {
		return Invalid("account_id", "required")
	}
	if !c.Tier.Valid() || c.Tier == TierFree {
		return Invalid("tier", "must be basic or pro")
	}
	if strings.TrimSpace(c.Currency) == "" {
		return Invalid("currency", "required")
	}
	if strings.TrimSpace(c.TransactionRef) == "" {
		return Invalid("transaction_ref", "required")
	}
	if !ValidTransactionRef(c.Currency, c.TransactionRef) {
		return Invalid("transaction_ref", "invalid format for "+strings.ToUpper(c.Currency))
	}
	return nil
}

// ValidTransactionRef checks the reference format expected for a currency
func ValidTransactionRef(currency, ref string) bool {
	ref = strings.TrimSpace(ref)
	switch strings.ToLower(strings.TrimSpace(currency)) {
	case "sol", "teos", "usdt":
		return base58Ref.MatchString(ref)
	case "pi":
		return len(ref) >= 32 && len(ref) <= 128
	default:
		return alphanumericRef.MatchString(ref)
	}
}
