package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newVerifiedAccount(t *testing.T, s *Store, code string, now time.Time) *domain.Account {
	t.Helper()
	a := domain.NewAccount(uuid.New(), code+"@example.com", code, now)
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	for _, step := range domain.VerificationSteps {
		if _, err := s.RecordVerificationStep(context.Background(), domain.RecordVerificationStep{AccountID: a.ID, Step: step}, now); err != nil {
			t.Fatalf("record step: %v", err)
		}
	}
	return a
}

func TestCreateAccountStartsWithZeroBalances(t *testing.T) {
	s := New()
	a := domain.NewAccount(uuid.New(), "a@example.com", "TEOSAAAAAA", time.Now())
	if err := s.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	bal, err := s.GetBalances(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	for _, tok := range domain.Tokens {
		if !bal.Get(tok).IsZero() {
			t.Fatalf("expected zero %s balance, got %s", tok, bal.Get(tok))
		}
	}

	dup := domain.NewAccount(uuid.New(), "b@example.com", "TEOSAAAAAA", time.Now())
	if err := s.CreateAccount(context.Background(), dup); !errors.Is(err, store.ErrReferralCodeTaken) {
		t.Fatalf("expected referral code collision, got %v", err)
	}
}

func TestVerificationCompletesCivicFlag(t *testing.T) {
	s := New()
	now := time.Now()
	a := domain.NewAccount(uuid.New(), "v@example.com", "TEOSVVVVVV", now)
	_ = s.CreateAccount(context.Background(), a)

	got, _ := s.RecordVerificationStep(context.Background(), domain.RecordVerificationStep{AccountID: a.ID, Step: domain.StepPetitionSigned}, now)
	if got.CivicVerified {
		t.Fatalf("one step must not verify the account")
	}
	a = newVerifiedAccount(t, s, "TEOSWWWWWW", now)
	got, _ = s.GetAccount(context.Background(), a.ID)
	if !got.CivicVerified || got.CivicVerifiedAt == nil {
		t.Fatalf("expected civic verification after all steps")
	}
}

func TestExecuteClaimCreditsAndRejectsDuringCooldown(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	a := newVerifiedAccount(t, s, "TEOSCLAIM1", now)

	out, err := s.ExecuteClaim(ctx, a.ID, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(out.Events) != 3 || !out.Credited[domain.TokenTEOS].Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected outcome %+v", out)
	}

	_, err = s.ExecuteClaim(ctx, a.ID, now.Add(time.Hour))
	var rej *domain.RejectedError
	if !errors.As(err, &rej) || rej.Reason != store.ReasonCooldown {
		t.Fatalf("expected cooldown rejection, got %v", err)
	}

	if _, err := s.ExecuteClaim(ctx, a.ID, now.Add(24*time.Hour)); err != nil {
		t.Fatalf("claim at boundary: %v", err)
	}
	bal, _ := s.GetBalances(ctx, a.ID)
	if !bal.Get(domain.TokenERT).Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected ERT 6, got %s", bal.Get(domain.TokenERT))
	}
}

func TestExecuteClaimConcurrentAtMostOne(t *testing.T) {
	s := New()
	now := time.Now()
	a := newVerifiedAccount(t, s, "TEOSRACE01", now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ExecuteClaim(context.Background(), a.ID, now); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", successes)
	}
	got, _ := s.GetAccount(context.Background(), a.ID)
	if got.TotalClaims != 1 {
		t.Fatalf("expected one counted claim, got %d", got.TotalClaims)
	}
}

func TestCreditBalanceIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newVerifiedAccount(t, s, "TEOSCREDIT", time.Now())
	cmd := domain.CreditBalance{
		AccountID:      a.ID,
		Token:          domain.TokenTEOS,
		Amount:         decimal.RequireFromString("1.8"),
		ReferralBonus:  true,
		IdempotencyKey: "referral_abc",
	}
	if _, applied, err := s.CreditBalance(ctx, cmd, time.Now()); err != nil || !applied {
		t.Fatalf("first credit: applied=%v err=%v", applied, err)
	}
	if _, applied, err := s.CreditBalance(ctx, cmd, time.Now()); err != nil || applied {
		t.Fatalf("second credit must be a no-op: applied=%v err=%v", applied, err)
	}
	bal, _ := s.GetBalances(ctx, a.ID)
	if !bal.Get(domain.TokenTEOS).Equal(decimal.RequireFromString("1.8")) {
		t.Fatalf("expected 1.8, got %s", bal.Get(domain.TokenTEOS))
	}
}

func TestApplyReferralRules(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	referrer := newVerifiedAccount(t, s, "TEOSREFR01", now)
	referred := newVerifiedAccount(t, s, "TEOSREFD01", now)

	if _, err := s.ApplyReferral(ctx, referrer.ID, referrer.ID, now); !errors.Is(err, store.ErrSelfReferral) {
		t.Fatalf("expected self referral error, got %v", err)
	}
	r, err := s.ApplyReferral(ctx, referrer.ID, referred.ID, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := s.ApplyReferral(ctx, referrer.ID, referred.ID, now); !errors.Is(err, store.ErrAlreadyReferred) {
		t.Fatalf("expected already referred, got %v", err)
	}
	got, _ := s.GetAccount(ctx, referrer.ID)
	if got.TotalReferrals != 1 {
		t.Fatalf("expected 1 referral, got %d", got.TotalReferrals)
	}

	_, _, _ = s.CreditBalance(ctx, domain.CreditBalance{
		AccountID: referrer.ID, Token: domain.TokenTEOS, Amount: decimal.RequireFromString("0.6"),
		ReferralBonus: true, IdempotencyKey: "referral_k1",
	}, now)
	for i := 0; i < 2; i++ {
		if _, err := s.AddReferralBonus(ctx, r.ID, "referral_k1", decimal.RequireFromString("0.6")); err != nil {
			t.Fatalf("add bonus: %v", err)
		}
	}
	stats, _ := s.ReferralStats(ctx, referrer.ID)
	if stats.TotalReferrals != 1 || !stats.BonusEarned.Equal(decimal.RequireFromString("0.6")) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	board, _ := s.Leaderboard(ctx, 10)
	if len(board) != 1 || board[0].AccountID != referrer.ID || board[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestConfirmPaymentAndSweep(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newVerifiedAccount(t, s, "TEOSPAY001", now)

	p := &domain.Payment{ID: uuid.New(), AccountID: a.ID, Tier: domain.TierPro, Currency: "pi",
		TransactionRef: "ref-1", Status: domain.PaymentStatusPending, SubmittedAt: now}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	dup := *p
	dup.ID = uuid.New()
	if err := s.CreatePayment(ctx, &dup); !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate transaction, got %v", err)
	}

	_, acc, err := s.ConfirmPayment(ctx, p.ID, now)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if acc.Tier != domain.TierPro || !acc.TierExpiresAt.Equal(now.Add(domain.TierDuration)) {
		t.Fatalf("unexpected account after confirm %+v", acc)
	}
	if _, _, err := s.ConfirmPayment(ctx, p.ID, now); !errors.Is(err, store.ErrPaymentProcessed) {
		t.Fatalf("expected processed error, got %v", err)
	}

	reset, _ := s.SweepExpiredTiers(ctx, now.Add(domain.TierDuration))
	if len(reset) != 0 {
		t.Fatalf("sweep at exact expiry must not reset")
	}
	reset, _ = s.SweepExpiredTiers(ctx, now.Add(domain.TierDuration+time.Second))
	if len(reset) != 1 || reset[0] != a.ID {
		t.Fatalf("expected account reset, got %v", reset)
	}
	got, _ := s.GetAccount(ctx, a.ID)
	if got.Tier != domain.TierFree || got.TierExpiresAt != nil {
		t.Fatalf("expected free tier without expiry, got %+v", got)
	}
}

func TestConfirmPaymentRequiresHigherTier(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	a := newVerifiedAccount(t, s, "TEOSPAY002", now)

	pro := &domain.Payment{ID: uuid.New(), AccountID: a.ID, Tier: domain.TierPro, Currency: "pi",
		TransactionRef: "ref-pro", Status: domain.PaymentStatusPending, SubmittedAt: now}
	basic := &domain.Payment{ID: uuid.New(), AccountID: a.ID, Tier: domain.TierBasic, Currency: "pi",
		TransactionRef: "ref-basic", Status: domain.PaymentStatusPending, SubmittedAt: now}
	_ = s.CreatePayment(ctx, pro)
	_ = s.CreatePayment(ctx, basic)

	if _, _, err := s.ConfirmPayment(ctx, pro.ID, now); err != nil {
		t.Fatalf("confirm pro: %v", err)
	}
	if _, _, err := s.ConfirmPayment(ctx, basic.ID, now); !errors.Is(err, store.ErrTierNotHigher) {
		t.Fatalf("expected tier not higher, got %v", err)
	}
	p, _ := s.GetPayment(ctx, basic.ID)
	if p.Status != domain.PaymentStatusPending {
		t.Fatalf("refused confirmation must leave payment pending, got %s", p.Status)
	}
}
