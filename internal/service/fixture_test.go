package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/events"
	"teos_mining/internal/store"
	"teos_mining/internal/store/memstore"

	"github.com/google/uuid"
)

type fixture struct {
	store     store.Store
	mem       *memstore.Store
	bus       *events.MemoryBus
	audit     *AuditService
	tokens    *TokenManager
	identity  *IdentityService
	referrals *ReferralService
	accounts  *AccountService
	claims    *ClaimService
	tiers     *TierService
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore lets a test wrap the memory store to inject faults
func newFixtureWithStore(t *testing.T, wrap func(store.Store) store.Store) *fixture {
	t.Helper()
	mem := memstore.New()
	var s store.Store = mem
	if wrap != nil {
		s = wrap(mem)
	}
	f := &fixture{
		store: s,
		mem:   mem,
		bus:   events.NewMemoryBus().WithRetry(3, time.Millisecond),
		now:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.audit = NewAuditService(s)
	f.tokens = NewTokenManager("test-secret", NewMemoryRevoker())
	f.tokens.now = clock
	f.identity = NewIdentityService(s, f.tokens, f.audit)
	f.identity.now = clock
	f.referrals = NewReferralService(s, f.bus, f.audit, "https://teos.example")
	f.referrals.now = clock
	f.accounts = NewAccountService(s, f.referrals, f.audit)
	f.accounts.now = clock
	f.claims = NewClaimService(s, f.accounts, f.referrals, f.bus, f.audit)
	f.claims.now = clock
	f.tiers = NewTierService(s, f.audit, Wallets{Solana: "sol-wallet", Pi: "pi-wallet"})
	f.tiers.now = clock
	f.identity.OnSessionChange(f.accounts.HandleSessionEvent)

	t.Cleanup(func() { f.bus.Close() })
	return f
}

func (f *fixture) newAccount(t *testing.T, verified bool) *domain.Account {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	acc, err := f.accounts.EnsureAccount(ctx, id, id.String()+"@example.com", "")
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	if verified {
		for _, step := range domain.VerificationSteps {
			if _, err := f.accounts.RecordVerificationStep(ctx, nil, domain.RecordVerificationStep{AccountID: id, Step: step}); err != nil {
				t.Fatalf("record step: %v", err)
			}
		}
		acc, _ = f.store.GetAccount(ctx, id)
	}
	return acc
}

func (f *fixture) session(t *testing.T, id uuid.UUID) *Session {
	t.Helper()
	sess, err := f.accounts.LoadSession(context.Background(), id, "token")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func (f *fixture) upgrade(t *testing.T, id uuid.UUID, tier domain.Tier) {
	t.Helper()
	ctx := context.Background()
	p, err := f.tiers.SubmitPayment(ctx, domain.SubmitPayment{
		AccountID:      id,
		Tier:           tier,
		Currency:       "pi",
		TransactionRef: strings.Repeat("x", 32) + uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("submit payment: %v", err)
	}
	if _, _, err := f.tiers.VerifyPayment(ctx, p.ID, true, "test"); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
}
