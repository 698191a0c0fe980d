package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"

	"github.com/google/uuid"
)

// AdminService provides admin statistics and lookups
type AdminService struct {
	store store.Store
	now   Clock
}

// NewAdminService creates a new admin service
func NewAdminService(s store.Store) *AdminService {
	return &AdminService{store: s, now: systemClock}
}

// Stats represents platform statistics
type Stats struct {
	TotalAccounts   int64 `json:"total_accounts"`
	ClaimsToday     int64 `json:"claims_today"`
	ClaimsWeek      int64 `json:"claims_week"`
	PendingPayments int   `json:"pending_payments"`
}

// GetStats returns platform statistics
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	now := s.now()
	today := now.Truncate(24 * time.Hour)

	var err error
	if stats.TotalAccounts, err = s.store.CountAccounts(ctx); err != nil {
		return nil, err
	}
	if stats.ClaimsToday, err = s.store.CountClaimsSince(ctx, today); err != nil {
		return nil, err
	}
	if stats.ClaimsWeek, err = s.store.CountClaimsSince(ctx, today.Add(-7*24*time.Hour)); err != nil {
		return nil, err
	}
	pending, err := s.store.ListPendingPayments(ctx, 1000)
	if err != nil {
		return nil, err
	}
	stats.PendingPayments = len(pending)
	return stats, nil
}

// AccountInfo is an account with its balances
type AccountInfo struct {
	Account  *domain.Account `json:"account"`
	Balances domain.Balances `json:"balances"`
}

// GetAccount resolves an account by id, referral code or email
func (s *AdminService) GetAccount(ctx context.Context, identifier string) (*AccountInfo, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		acc *domain.Account
		err error
	)
	switch {
	case identifier == "":
		return nil, domain.Invalid("identifier", "required")
	case strings.Contains(identifier, "@"):
		var ident *domain.Identity
		ident, err = s.store.GetIdentityByEmail(ctx, identifier)
		if err == nil {
			acc, err = s.store.GetAccount(ctx, ident.ID)
		}
	default:
		if id, perr := uuid.Parse(identifier); perr == nil {
			acc, err = s.store.GetAccount(ctx, id)
		} else {
			acc, err = s.store.GetAccountByReferralCode(ctx, identifier)
		}
	}
	if err != nil {
		return nil, err
	}

	bal, err := s.store.GetBalances(ctx, acc.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if bal == nil {
		bal = domain.ZeroBalances()
	}
	return &AccountInfo{Account: acc, Balances: bal}, nil
}
