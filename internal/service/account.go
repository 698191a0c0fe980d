package service

import (
	"context"
	"errors"
	"fmt"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/store"

	"github.com/google/uuid"
)

const referralCodeAttempts = 5

type AccountService struct {
	store     store.Store
	referrals *ReferralService
	audit     *AuditService
	now       Clock
}

func NewAccountService(s store.Store, referrals *ReferralService, audit *AuditService) *AccountService {
	return &AccountService{store: s, referrals: referrals, audit: audit, now: systemClock}
}

// HandleSessionEvent creates the account on first sign-in
func (s *AccountService) HandleSessionEvent(ctx context.Context, ev SessionEvent) error {
	if ev.Kind != SignedIn {
		return nil
	}
	_, err := s.EnsureAccount(ctx, ev.AccountID, ev.Email, ev.PendingReferralCode)
	return err
}

// EnsureAccount returns the account, creating it with defaults and a
// fresh referral code when it does not exist yet.
func (s *AccountService) EnsureAccount(ctx context.Context, id uuid.UUID, email, pendingCode string) (*domain.Account, error) {
	acc, err := s.store.GetAccount(ctx, id)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := GenerateReferralCode()
		if err != nil {
			return nil, err
		}
		acc = domain.NewAccount(id, email, code, s.now())
		err = s.store.CreateAccount(ctx, acc)
		if errors.Is(err, store.ErrReferralCodeTaken) {
			continue
		}
		if errors.Is(err, store.ErrAccountExists) {
			return s.store.GetAccount(ctx, id)
		}
		if err != nil {
			return nil, err
		}

		logger.Info("account created", "account_id", id, "referral_code", code)
		if pendingCode != "" && s.referrals != nil {
			if _, err := s.referrals.ApplyCode(ctx, id, pendingCode); err != nil {
				logger.Warn("pending referral code not applied", "account_id", id, "code", pendingCode, "error", err)
			}
		}
		return s.store.GetAccount(ctx, id)
	}
	return nil, fmt.Errorf("generate unique referral code: %w", store.ErrReferralCodeTaken)
}

// LoadSession builds a session for an authenticated account
func (s *AccountService) LoadSession(ctx context.Context, accountID uuid.UUID, token string) (*Session, error) {
	sess := &Session{Token: token, Account: &domain.Account{ID: accountID}}
	if err := s.RefreshSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// RefreshSession reloads account and balances from the store
func (s *AccountService) RefreshSession(ctx context.Context, sess *Session) error {
	if !sess.valid() {
		return domain.Invalid("session", "required")
	}
	acc, err := s.store.GetAccount(ctx, sess.Account.ID)
	if err != nil {
		return err
	}
	bal, err := s.store.GetBalances(ctx, acc.ID)
	if err != nil {
		return err
	}
	sess.Account = acc
	sess.Balances = bal
	sess.LoadedAt = s.now()
	return nil
}

// RecordVerificationStep marks a civic step and refreshes the session.
// It returns the steps still missing.
func (s *AccountService) RecordVerificationStep(ctx context.Context, sess *Session, cmd domain.RecordVerificationStep) ([]domain.VerificationStep, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	wasVerified := sess.valid() && sess.Account.CivicVerified

	acc, err := s.store.RecordVerificationStep(ctx, cmd, s.now())
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &acc.ID, domain.AuditActionVerificationStep, domain.AuditCategoryVerification, map[string]interface{}{
		"step": string(cmd.Step),
	})
	if acc.CivicVerified && !wasVerified {
		s.audit.Log(ctx, &acc.ID, domain.AuditActionCivicVerified, domain.AuditCategoryVerification, nil)
	}

	if sess.valid() && sess.Account.ID == acc.ID {
		if err := s.RefreshSession(ctx, sess); err != nil {
			sess.Account = acc
		}
	}
	return acc.Verification.Missing(), nil
}
