package mining

import (
	"teos_mining/internal/domain"

	"github.com/shopspring/decimal"
)

// Rewards is the per-token amount credited by one successful claim
type Rewards map[domain.Token]decimal.Decimal

var rewardTable = map[domain.Tier]Rewards{
	domain.TierFree: {
		domain.TokenTEOS: decimal.NewFromInt(12),
		domain.TokenTUT:  decimal.NewFromInt(6),
		domain.TokenERT:  decimal.NewFromInt(3),
	},
	domain.TierBasic: {
		domain.TokenTEOS: decimal.NewFromInt(24),
		domain.TokenTUT:  decimal.NewFromInt(12),
		domain.TokenERT:  decimal.NewFromInt(6),
	},
	domain.TierPro: {
		domain.TokenTEOS: decimal.NewFromInt(36),
		domain.TokenTUT:  decimal.NewFromInt(18),
		domain.TokenERT:  decimal.NewFromInt(9),
	},
}

// RewardsFor returns a copy of the daily rewards for tier.
// Unknown tiers get the free rewards.
func RewardsFor(tier domain.Tier) Rewards {
	src, ok := rewardTable[tier]
	if !ok {
		src = rewardTable[domain.TierFree]
	}
	out := make(Rewards, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Primary returns the primary token amount
func (r Rewards) Primary() decimal.Decimal {
	return r[domain.PrimaryToken]
}

// ReferralBonus is the referrer's share of a primary-token amount
func ReferralBonus(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(domain.ReferralBonusRate)
}

// PotentialEarnings projects referral income for count referrals mining
// daily at tier.
type PotentialEarnings struct {
	Daily   decimal.Decimal `json:"daily"`
	Monthly decimal.Decimal `json:"monthly"`
	Yearly  decimal.Decimal `json:"yearly"`
}

func ProjectEarnings(tier domain.Tier, count int) PotentialEarnings {
	daily := ReferralBonus(RewardsFor(tier).Primary()).Mul(decimal.NewFromInt(int64(count)))
	return PotentialEarnings{
		Daily:   daily,
		Monthly: daily.Mul(decimal.NewFromInt(30)),
		Yearly:  daily.Mul(decimal.NewFromInt(365)),
	}
}
