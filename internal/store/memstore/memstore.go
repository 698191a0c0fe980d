// Package memstore is an in-process store.Store used by tests and by
// STORE_DRIVER=memory. Every operation holds one mutex for its duration,
// which gives the same atomicity as the conditional updates in Postgres.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/mining"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	accounts map[uuid.UUID]*domain.Account
	codes    map[string]uuid.UUID
	balances map[uuid.UUID]domain.Balances

	events    []domain.ClaimEvent
	eventKeys map[string]int
	counted   map[string]bool

	referrals  map[int64]*domain.Referral
	byReferred map[uuid.UUID]int64
	nextRefID  int64

	payments    map[uuid.UUID]*domain.Payment
	paymentRefs map[string]uuid.UUID

	identities map[uuid.UUID]*domain.Identity
	emails     map[string]uuid.UUID

	audit       []domain.AuditLog
	nextAuditID int64
}

func New() *Store {
	return &Store{
		accounts:    make(map[uuid.UUID]*domain.Account),
		codes:       make(map[string]uuid.UUID),
		balances:    make(map[uuid.UUID]domain.Balances),
		eventKeys:   make(map[string]int),
		counted:     make(map[string]bool),
		referrals:   make(map[int64]*domain.Referral),
		byReferred:  make(map[uuid.UUID]int64),
		payments:    make(map[uuid.UUID]*domain.Payment),
		paymentRefs: make(map[string]uuid.UUID),
		identities:  make(map[uuid.UUID]*domain.Identity),
		emails:      make(map[string]uuid.UUID),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Verification = make(domain.VerificationFlags, len(a.Verification))
	for k, v := range a.Verification {
		c.Verification[k] = v
	}
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }

// --- Accounts ---

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return store.ErrAccountExists
	}
	if _, ok := s.codes[a.ReferralCode]; ok {
		return store.ErrReferralCodeTaken
	}
	s.accounts[a.ID] = cloneAccount(a)
	s.codes[a.ReferralCode] = a.ID
	s.balances[a.ID] = domain.ZeroBalances()
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) RecordVerificationStep(ctx context.Context, cmd domain.RecordVerificationStep, now time.Time) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[cmd.AccountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if a.Verification == nil {
		a.Verification = domain.VerificationFlags{}
	}
	a.Verification[cmd.Step] = true
	if a.Verification.Complete() && !a.CivicVerified {
		a.CivicVerified = true
		a.CivicVerifiedAt = timePtr(now)
	}
	a.UpdatedAt = now
	return cloneAccount(a), nil
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.accounts)), nil
}

// --- Mining ---

func (s *Store) ExecuteClaim(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.ClaimOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !a.CivicVerified {
		return nil, &domain.RejectedError{Reason: store.ReasonNotVerified}
	}
	if !mining.CanClaim(a.LastClaimAt, now) {
		return nil, &domain.RejectedError{Reason: store.ReasonCooldown}
	}

	tier := a.EffectiveTier(now)
	rewards := mining.RewardsFor(tier)

	a.LastClaimAt = timePtr(now)
	a.TotalClaims++
	a.UpdatedAt = now

	out := &domain.ClaimOutcome{
		AccountID: accountID,
		Tier:      tier,
		ClaimedAt: now,
		Credited:  make(map[domain.Token]decimal.Decimal, len(domain.Tokens)),
	}
	bal := s.balances[accountID]
	for _, token := range domain.Tokens {
		amount := rewards[token]
		id := uuid.New()
		ev := domain.ClaimEvent{
			ID:             id,
			AccountID:      accountID,
			Token:          token,
			Amount:         amount,
			Tier:           tier,
			IdempotencyKey: domain.ClaimIdempotencyKey(id),
			CreatedAt:      now,
		}
		s.eventKeys[ev.IdempotencyKey] = len(s.events)
		s.events = append(s.events, ev)
		bal[token] = bal.Get(token).Add(amount)
		out.Credited[token] = amount
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

func (s *Store) CreditBalance(ctx context.Context, cmd domain.CreditBalance, now time.Time) (*domain.ClaimEvent, bool, error) {
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.eventKeys[cmd.IdempotencyKey]; ok {
		ev := s.events[idx]
		return &ev, false, nil
	}
	bal, ok := s.balances[cmd.AccountID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	ev := domain.ClaimEvent{
		ID:             uuid.New(),
		AccountID:      cmd.AccountID,
		Token:          cmd.Token,
		Amount:         cmd.Amount,
		Tier:           cmd.Tier,
		ReferralBonus:  cmd.ReferralBonus,
		IdempotencyKey: cmd.IdempotencyKey,
		CreatedAt:      now,
	}
	s.eventKeys[ev.IdempotencyKey] = len(s.events)
	s.events = append(s.events, ev)
	bal[cmd.Token] = bal.Get(cmd.Token).Add(cmd.Amount)
	return &ev, true, nil
}

func (s *Store) GetBalances(ctx context.Context, accountID uuid.UUID) (domain.Balances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.balances[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return bal.Clone(), nil
}

func (s *Store) ListClaimEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ClaimEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ClaimEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].AccountID != accountID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CountClaimsSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, ev := range s.events {
		if !ev.ReferralBonus && ev.Token == domain.PrimaryToken && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- Referrals ---

func (s *Store) ApplyReferral(ctx context.Context, referrerID, referredID uuid.UUID, now time.Time) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if referrerID == referredID {
		return nil, store.ErrSelfReferral
	}
	referrer, ok := s.accounts[referrerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	referred, ok := s.accounts[referredID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if _, ok := s.byReferred[referredID]; ok || referred.ReferredBy != nil {
		return nil, store.ErrAlreadyReferred
	}

	s.nextRefID++
	r := &domain.Referral{
		ID:          s.nextRefID,
		ReferrerID:  referrerID,
		ReferredID:  referredID,
		Status:      domain.ReferralStatusActive,
		BonusEarned: decimal.Zero,
		CreatedAt:   now,
	}
	s.referrals[r.ID] = r
	s.byReferred[referredID] = r.ID

	rid := referrerID
	referred.ReferredBy = &rid
	referred.UpdatedAt = now
	referrer.TotalReferrals++
	referrer.UpdatedAt = now

	c := *r
	return &c, nil
}

func (s *Store) GetActiveReferral(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byReferred[referredID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r := s.referrals[id]
	if r.Status != domain.ReferralStatusActive {
		return nil, domain.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *Store) AddReferralBonus(ctx context.Context, referralID int64, bonusKey string, amount decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.referrals[referralID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if _, ok := s.eventKeys[bonusKey]; !ok {
		return false, domain.ErrNotFound
	}
	if s.counted[bonusKey] {
		return false, nil
	}
	s.counted[bonusKey] = true
	r.BonusEarned = r.BonusEarned.Add(amount)
	return true, nil
}

func (s *Store) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]domain.ReferredAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.ReferredAccount
	for _, r := range s.referrals {
		if r.ReferrerID != referrerID {
			continue
		}
		ra := domain.ReferredAccount{Referral: *r}
		if a, ok := s.accounts[r.ReferredID]; ok {
			ra.Email = a.Email
			ra.JoinedAt = a.CreatedAt
			ra.LastClaimAt = a.LastClaimAt
		}
		out = append(out, ra)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ReferralStats(ctx context.Context, referrerID uuid.UUID) (domain.ReferralStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.ReferralStats{BonusEarned: decimal.Zero}
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID && r.Status == domain.ReferralStatusActive {
			stats.TotalReferrals++
			stats.BonusEarned = stats.BonusEarned.Add(r.BonusEarned)
		}
	}
	return stats, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.ReferralLeader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accs []*domain.Account
	for _, a := range s.accounts {
		if a.TotalReferrals > 0 {
			accs = append(accs, a)
		}
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].TotalReferrals == accs[j].TotalReferrals {
			return accs[i].CreatedAt.Before(accs[j].CreatedAt)
		}
		return accs[i].TotalReferrals > accs[j].TotalReferrals
	})
	if limit > 0 && len(accs) > limit {
		accs = accs[:limit]
	}
	out := make([]domain.ReferralLeader, 0, len(accs))
	for i, a := range accs {
		out = append(out, domain.ReferralLeader{
			Rank:           i + 1,
			AccountID:      a.ID,
			Email:          a.Email,
			ReferralCode:   a.ReferralCode,
			TotalReferrals: a.TotalReferrals,
		})
	}
	return out, nil
}

// --- Payments ---

func paymentRefKey(currency, ref string) string {
	return strings.ToLower(strings.TrimSpace(currency)) + ":" + strings.TrimSpace(ref)
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[p.AccountID]; !ok {
		return domain.ErrNotFound
	}
	key := paymentRefKey(p.Currency, p.TransactionRef)
	if _, ok := s.paymentRefs[key]; ok {
		return store.ErrDuplicateTransaction
	}
	c := *p
	s.payments[p.ID] = &c
	s.paymentRefs[key] = p.ID
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *Store) listPayments(match func(*domain.Payment) bool) []domain.Payment {
	var out []domain.Payment
	for _, p := range s.payments {
		if match(p) {
			out = append(out, *p)
		}
	}
	return out
}

func (s *Store) ListPayments(ctx context.Context, accountID uuid.UUID) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.listPayments(func(p *domain.Payment) bool { return p.AccountID == accountID })
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (s *Store) ListPendingPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.listPayments(func(p *domain.Payment) bool { return p.Status == domain.PaymentStatusPending })
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ConfirmPayment(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Payment, *domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, nil, store.ErrPaymentProcessed
	}
	a, ok := s.accounts[p.AccountID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	if !p.Tier.Above(a.EffectiveTier(now)) {
		return nil, nil, store.ErrTierNotHigher
	}

	p.Status = domain.PaymentStatusConfirmed
	p.VerifiedAt = timePtr(now)
	a.Tier = p.Tier
	a.TierUpgradedAt = timePtr(now)
	a.TierExpiresAt = timePtr(now.Add(domain.TierDuration))
	a.UpdatedAt = now

	c := *p
	return &c, cloneAccount(a), nil
}

func (s *Store) RejectPayment(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, store.ErrPaymentProcessed
	}
	p.Status = domain.PaymentStatusFailed
	p.VerifiedAt = timePtr(now)
	c := *p
	return &c, nil
}

func (s *Store) SweepExpiredTiers(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reset []uuid.UUID
	for id, a := range s.accounts {
		if a.Tier != domain.TierFree && a.TierExpiresAt != nil && a.TierExpiresAt.Before(now) {
			a.Tier = domain.TierFree
			a.TierExpiresAt = nil
			a.UpdatedAt = now
			reset = append(reset, id)
		}
	}
	return reset, nil
}

// --- Identities ---

func (s *Store) CreateIdentity(ctx context.Context, id *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(id.Email)
	if _, ok := s.emails[email]; ok {
		return store.ErrEmailTaken
	}
	c := *id
	s.identities[id.ID] = &c
	s.emails[email] = id.ID
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *i
	return &c, nil
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s.identities[id]
	return &c, nil
}

// --- Audit ---

func (s *Store) CreateAuditLog(ctx context.Context, log *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAuditID++
	log.ID = s.nextAuditID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.audit = append(s.audit, *log)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AuditLog
	for i := len(s.audit) - 1; i >= 0; i-- {
		l := s.audit[i]
		if l.AccountID == nil || *l.AccountID != accountID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
