package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents payment verification status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// TierPricing is the USD price of each paid tier
var TierPricing = map[Tier]decimal.Decimal{
	TierBasic: decimal.NewFromInt(5),
	TierPro:   decimal.NewFromInt(10),
}

// Payment is a manual payment proof submitted to upgrade a tier
type Payment struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	AccountID      uuid.UUID       `db:"account_id" json:"account_id"`
	Tier           Tier            `db:"tier" json:"tier"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	TransactionRef string          `db:"transaction_ref" json:"transaction_ref"`
	WalletAddress  string          `db:"wallet_address" json:"wallet_address,omitempty"`
	Status         PaymentStatus   `db:"status" json:"status"`
	SubmittedAt    time.Time       `db:"submitted_at" json:"submitted_at"`
	VerifiedAt     *time.Time      `db:"verified_at" json:"verified_at,omitempty"`
}
