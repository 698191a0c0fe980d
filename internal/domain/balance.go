package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Token is one of the three mined token symbols
type Token string

const (
	TokenTEOS Token = "TEOS"
	TokenTUT  Token = "TUT"
	TokenERT  Token = "ERT"
)

// PrimaryToken is the only token that generates referral bonuses
const PrimaryToken = TokenTEOS

// Tokens is the closed token set in display order
var Tokens = []Token{TokenTEOS, TokenTUT, TokenERT}

// Valid reports whether t is in the closed token set
func (t Token) Valid() bool {
	switch t {
	case TokenTEOS, TokenTUT, TokenERT:
		return true
	}
	return false
}

// Balances maps each token to the account's non-negative amount
type Balances map[Token]decimal.Decimal

// ZeroBalances returns a balance set with every token at zero
func ZeroBalances() Balances {
	b := make(Balances, len(Tokens))
	for _, t := range Tokens {
		b[t] = decimal.Zero
	}
	return b
}

// Get returns the balance for t, zero when absent
func (b Balances) Get(t Token) decimal.Decimal {
	if v, ok := b[t]; ok {
		return v
	}
	return decimal.Zero
}

// Apply adds a per-token delta in place
func (b Balances) Apply(delta map[Token]decimal.Decimal) {
	for t, v := range delta {
		b[t] = b.Get(t).Add(v)
	}
}

// Clone returns an independent copy
func (b Balances) Clone() Balances {
	c := make(Balances, len(b))
	for t, v := range b {
		c[t] = v
	}
	return c
}

// ClaimEvent records one credited token amount. Every claim produces one
// event per token; referral bonuses produce a single primary-token event.
type ClaimEvent struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	AccountID      uuid.UUID       `db:"account_id" json:"account_id"`
	Token          Token           `db:"token" json:"token"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Tier           Tier            `db:"tier" json:"tier"`
	ReferralBonus  bool            `db:"referral_bonus" json:"referral_bonus"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ClaimIdempotencyKey is the key stored on the events of a direct claim
func ClaimIdempotencyKey(eventID uuid.UUID) string {
	return "mine_" + eventID.String()
}

// ReferralIdempotencyKey is derived from the originating event so a
// redelivered notification cannot credit the same bonus twice.
func ReferralIdempotencyKey(originalEventID uuid.UUID) string {
	return "referral_" + originalEventID.String()
}

// ClaimOutcome is what the atomic store claim returns on success
type ClaimOutcome struct {
	AccountID uuid.UUID                 `json:"account_id"`
	Tier      Tier                      `json:"tier"`
	ClaimedAt time.Time                 `json:"claimed_at"`
	Credited  map[Token]decimal.Decimal `json:"credited"`
	Events    []ClaimEvent              `json:"events"`
}
