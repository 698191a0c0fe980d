package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	cases := []struct {
		name    string
		tier    Tier
		expires *time.Time
		want    Tier
	}{
		{"free", TierFree, nil, TierFree},
		{"pro without expiry", TierPro, nil, TierPro},
		{"pro not expired", TierPro, &future, TierPro},
		{"pro expired", TierPro, &past, TierFree},
		{"exact expiry still counts", TierBasic, &now, TierBasic},
		{"unknown tier", Tier("gold"), nil, TierFree},
	}
	for _, tc := range cases {
		a := &Account{Tier: tc.tier, TierExpiresAt: tc.expires}
		if got := a.EffectiveTier(now); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestTierOrdering(t *testing.T) {
	if !TierPro.Above(TierBasic) || !TierBasic.Above(TierFree) {
		t.Fatalf("expected free < basic < pro")
	}
	if TierBasic.Above(TierBasic) {
		t.Fatalf("a tier must not be above itself")
	}
	if _, ok := ParseTier("platinum"); ok {
		t.Fatalf("expected unknown tier to be rejected")
	}
}

func TestVerificationFlagsMissing(t *testing.T) {
	f := VerificationFlags{StepPetitionSigned: true, StepXFollowed: true}
	missing := f.Missing()
	if len(missing) != 2 || missing[0] != StepTelegramJoined || missing[1] != StepFacebookFollowed {
		t.Fatalf("unexpected missing steps: %v", missing)
	}
	for _, s := range VerificationSteps {
		f[s] = true
	}
	if !f.Complete() {
		t.Fatalf("expected complete flags")
	}
}

func TestErrorTaxonomyUnwraps(t *testing.T) {
	var err error = &CooldownError{Remaining: time.Hour}
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("cooldown error should unwrap to ErrCooldownActive")
	}
	var ce *CooldownError
	if !errors.As(err, &ce) || ce.Remaining != time.Hour {
		t.Fatalf("expected remaining to survive errors.As")
	}

	err = &CooldownError{Remaining: time.Minute, Reason: "Claim cooldown has not finished yet"}
	if !errors.Is(err, ErrCooldownActive) || err.Error() != "Claim cooldown has not finished yet" {
		t.Fatalf("store-enforced cooldown must keep its reason, got %q", err.Error())
	}

	err = &NotEligibleError{MissingSteps: []VerificationStep{StepXFollowed}}
	if !errors.Is(err, ErrNotEligible) || !strings.Contains(err.Error(), "x_followed") {
		t.Fatalf("unexpected not eligible error: %v", err)
	}

	err = &RejectedError{Reason: "Claim cooldown not finished"}
	if !errors.Is(err, ErrClaimRejected) || err.Error() != "Claim cooldown not finished" {
		t.Fatalf("rejected reason must be verbatim, got %q", err.Error())
	}

	if !errors.Is(Transient(errors.New("timeout")), ErrTransient) {
		t.Fatalf("expected transient wrapper")
	}
	if Transient(nil) != nil {
		t.Fatalf("transient of nil must be nil")
	}
}

func TestCreditBalanceValidate(t *testing.T) {
	ok := CreditBalance{
		AccountID:      uuid.New(),
		Token:          TokenTEOS,
		Amount:         decimal.RequireFromString("1.8"),
		IdempotencyKey: "referral_x",
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := ok
	bad.Amount = decimal.Zero
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
	bad = ok
	bad.Token = "BTC"
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown token, got %v", err)
	}
	bad = ok
	bad.IdempotencyKey = " "
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty key, got %v", err)
	}
}

func TestValidTransactionRef(t *testing.T) {
	base58 := strings.Repeat("3vZ", 29)[:86]
	cases := []struct {
		currency string
		ref      string
		want     bool
	}{
		{"SOL", base58, true},
		{"usdt", base58, true},
		{"sol", strings.Repeat("0", 86), false},
		{"sol", "short", false},
		{"PI", strings.Repeat("a", 32), true},
		{"pi", strings.Repeat("a", 31), false},
		{"pi", strings.Repeat("a", 129), false},
		{"btc", strings.Repeat("A1", 16), true},
		{"btc", strings.Repeat("A1", 15) + "-x", false},
	}
	for _, tc := range cases {
		if got := ValidTransactionRef(tc.currency, tc.ref); got != tc.want {
			t.Fatalf("%s %q: expected %v, got %v", tc.currency, tc.ref, tc.want, got)
		}
	}
}

func TestSubmitPaymentValidate(t *testing.T) {
	cmd := SubmitPayment{
		AccountID:      uuid.New(),
		Tier:           TierFree,
		Currency:       "pi",
		TransactionRef: strings.Repeat("b", 40),
	}
	if err := cmd.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected free tier to be rejected, got %v", err)
	}
	cmd.Tier = TierBasic
	if err := cmd.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
