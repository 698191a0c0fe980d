package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/migrations"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Integration tests: run only if DATABASE_URL is set.
func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if _, err := migrations.Apply(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	s := NewStore(db)
	t.Cleanup(s.Close)
	return s
}

func uniqueCode() string {
	return "TEOS" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
}

func verifiedAccount(t *testing.T, s *Store, now time.Time) *domain.Account {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	a := domain.NewAccount(id, fmt.Sprintf("%s@example.com", id), uniqueCode(), now)
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	for _, step := range domain.VerificationSteps {
		if _, err := s.RecordVerificationStep(ctx, domain.RecordVerificationStep{AccountID: id, Step: step}, now); err != nil {
			t.Fatalf("record step %s: %v", step, err)
		}
	}
	return a
}

func TestStoreClaimIntegration(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := verifiedAccount(t, s, now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ExecuteClaim(ctx, a.ID, now); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", ok)
	}

	_, err := s.ExecuteClaim(ctx, a.ID, now.Add(23*time.Hour))
	if !errors.Is(err, domain.ErrClaimRejected) {
		t.Fatalf("expected rejection during cooldown, got %v", err)
	}

	bal, err := s.GetBalances(ctx, a.ID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !bal.Get(domain.TokenTEOS).Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected 12 TEOS, got %s", bal.Get(domain.TokenTEOS))
	}
	events, err := s.ListClaimEvents(ctx, a.ID, 10)
	if err != nil || len(events) != 3 {
		t.Fatalf("expected 3 claim events, got %d (%v)", len(events), err)
	}
}

func TestStoreReferralBonusIntegration(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	referrer := verifiedAccount(t, s, now)
	referred := verifiedAccount(t, s, now)

	ref, err := s.ApplyReferral(ctx, referrer.ID, referred.ID, now)
	if err != nil {
		t.Fatalf("apply referral: %v", err)
	}
	if _, err := s.ApplyReferral(ctx, referrer.ID, referred.ID, now); !errors.Is(err, store.ErrAlreadyReferred) {
		t.Fatalf("expected already referred, got %v", err)
	}

	key := domain.ReferralIdempotencyKey(uuid.New())
	cmd := domain.CreditBalance{
		AccountID:      referrer.ID,
		Token:          domain.TokenTEOS,
		Amount:         decimal.RequireFromString("1.8"),
		Tier:           domain.TierPro,
		ReferralBonus:  true,
		IdempotencyKey: key,
	}
	for i := 0; i < 2; i++ {
		if _, _, err := s.CreditBalance(ctx, cmd, now); err != nil {
			t.Fatalf("credit: %v", err)
		}
		if _, err := s.AddReferralBonus(ctx, ref.ID, key, cmd.Amount); err != nil {
			t.Fatalf("add bonus: %v", err)
		}
	}

	bal, _ := s.GetBalances(ctx, referrer.ID)
	if !bal.Get(domain.TokenTEOS).Equal(decimal.RequireFromString("1.8")) {
		t.Fatalf("expected 1.8 TEOS, got %s", bal.Get(domain.TokenTEOS))
	}
	stats, _ := s.ReferralStats(ctx, referrer.ID)
	if !stats.BonusEarned.Equal(decimal.RequireFromString("1.8")) {
		t.Fatalf("expected bonus earned 1.8, got %s", stats.BonusEarned)
	}
}

func TestStorePaymentLifecycleIntegration(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := verifiedAccount(t, s, now)

	p := &domain.Payment{
		ID:             uuid.New(),
		AccountID:      a.ID,
		Tier:           domain.TierBasic,
		Amount:         domain.TierPricing[domain.TierBasic],
		Currency:       "PI",
		TransactionRef: strings.Repeat("a", 24) + uuid.NewString()[:8],
		Status:         domain.PaymentStatusPending,
		SubmittedAt:    now,
	}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	_, acc, err := s.ConfirmPayment(ctx, p.ID, now)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if acc.Tier != domain.TierBasic {
		t.Fatalf("expected basic tier, got %s", acc.Tier)
	}

	ids, err := s.SweepExpiredTiers(ctx, now.Add(domain.TierDuration+time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == a.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected account in sweep result")
	}
}
