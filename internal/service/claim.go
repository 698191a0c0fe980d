package service

import (
	"context"
	"errors"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/events"
	"teos_mining/internal/logger"
	"teos_mining/internal/metrics"
	"teos_mining/internal/mining"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClaimResult is returned to the caller after a successful claim
type ClaimResult struct {
	Tier        domain.Tier                      `json:"tier"`
	Credited    map[domain.Token]decimal.Decimal `json:"credited"`
	ClaimedAt   time.Time                        `json:"claimed_at"`
	NextClaimAt time.Time                        `json:"next_claim_at"`
	Balances    domain.Balances                  `json:"balances"`
}

// MiningStatus is the cooldown and eligibility view for an account
type MiningStatus struct {
	Tier             domain.Tier               `json:"tier"`
	TierExpiresAt    *time.Time                `json:"tier_expires_at,omitempty"`
	Verified         bool                      `json:"verified"`
	MissingSteps     []domain.VerificationStep `json:"missing_steps"`
	CanClaim         bool                      `json:"can_claim"`
	RemainingSeconds int64                     `json:"remaining_seconds"`
	Remaining        string                    `json:"remaining"`
	NextClaimAt      *time.Time                `json:"next_claim_at,omitempty"`
	Rewards          mining.Rewards            `json:"rewards"`
	TotalClaims      int64                     `json:"total_claims"`
	Balances         domain.Balances           `json:"balances"`
}

type ClaimService struct {
	store     store.Store
	accounts  *AccountService
	referrals *ReferralService
	bus       events.Bus
	audit     *AuditService
	now       Clock
}

func NewClaimService(s store.Store, accounts *AccountService, referrals *ReferralService, bus events.Bus, audit *AuditService) *ClaimService {
	return &ClaimService{store: s, accounts: accounts, referrals: referrals, bus: bus, audit: audit, now: systemClock}
}

// Status reports eligibility and cooldown from the session's cached account
func (s *ClaimService) Status(sess *Session) (*MiningStatus, error) {
	if !sess.valid() {
		return nil, domain.Invalid("session", "required")
	}
	acc := sess.Account
	now := s.now()
	tier := acc.EffectiveTier(now)
	remaining := mining.TimeUntilNextClaim(acc.LastClaimAt, now)

	missing := acc.Verification.Missing()
	if missing == nil || acc.CivicVerified {
		missing = []domain.VerificationStep{}
	}
	return &MiningStatus{
		Tier:             tier,
		TierExpiresAt:    acc.TierExpiresAt,
		Verified:         acc.CivicVerified,
		MissingSteps:     missing,
		CanClaim:         acc.CivicVerified && mining.CanClaim(acc.LastClaimAt, now),
		RemainingSeconds: int64(remaining.Seconds()),
		Remaining:        mining.FormatRemaining(remaining),
		NextClaimAt:      mining.NextClaimAt(acc.LastClaimAt, now),
		Rewards:          mining.RewardsFor(tier),
		TotalClaims:      acc.TotalClaims,
		Balances:         sess.Balances,
	}, nil
}

// ExecuteClaim runs the local eligibility and cooldown checks, then the
// atomic store claim. The store stays authoritative: a claim that passes
// locally can still be declined there.
func (s *ClaimService) ExecuteClaim(ctx context.Context, sess *Session) (*ClaimResult, error) {
	if !sess.valid() {
		return nil, domain.Invalid("session", "required")
	}
	acc := sess.Account
	log := logger.WithContext(ctx).With("account_id", acc.ID)

	if !acc.CivicVerified {
		metrics.Claims.WithLabelValues("not_eligible").Inc()
		return nil, &domain.NotEligibleError{MissingSteps: acc.Verification.Missing()}
	}

	now := s.now()
	if !mining.CanClaim(acc.LastClaimAt, now) {
		metrics.Claims.WithLabelValues("cooldown").Inc()
		return nil, &domain.CooldownError{Remaining: mining.TimeUntilNextClaim(acc.LastClaimAt, now)}
	}

	out, err := s.store.ExecuteClaim(ctx, acc.ID, now)
	if err != nil {
		return nil, s.claimFailure(ctx, sess, err)
	}

	metrics.Claims.WithLabelValues("ok").Inc()
	for token, amount := range out.Credited {
		metrics.TokensCredited.WithLabelValues(string(token), "claim").Add(amount.InexactFloat64())
	}
	log.Info("claim credited", "tier", out.Tier, "teos", out.Credited[domain.TokenTEOS].String())
	s.audit.LogClaim(ctx, out)

	if err := s.accounts.RefreshSession(ctx, sess); err != nil {
		log.Warn("session refresh after claim failed", "error", err)
		acc.LastClaimAt = &out.ClaimedAt
		acc.TotalClaims++
		if sess.Balances == nil {
			sess.Balances = domain.ZeroBalances()
		}
		sess.Balances.Apply(out.Credited)
	}

	s.dispatch(ctx, out.Events)

	return &ClaimResult{
		Tier:        out.Tier,
		Credited:    out.Credited,
		ClaimedAt:   out.ClaimedAt,
		NextClaimAt: out.ClaimedAt.Add(mining.Cooldown),
		Balances:    sess.Balances.Clone(),
	}, nil
}

// claimFailure classifies a store error and resyncs the session when the
// store declined, since the cached account was evidently stale. A decline
// caused by another session's claim comes back as a CooldownError.
func (s *ClaimService) claimFailure(ctx context.Context, sess *Session, err error) error {
	switch {
	case errors.Is(err, domain.ErrClaimRejected):
		metrics.Claims.WithLabelValues("rejected").Inc()
		if rerr := s.accounts.RefreshSession(ctx, sess); rerr != nil {
			logger.Warn("session refresh after rejection failed", "error", rerr)
			return err
		}
		now := s.now()
		if last := sess.Account.LastClaimAt; !mining.CanClaim(last, now) {
			var rej *domain.RejectedError
			reason := err.Error()
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			return &domain.CooldownError{Remaining: mining.TimeUntilNextClaim(last, now), Reason: reason}
		}
		return err
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		metrics.Claims.WithLabelValues("error").Inc()
		return err
	case errors.Is(err, domain.ErrTransient):
		metrics.Claims.WithLabelValues("transient").Inc()
		return err
	default:
		metrics.Claims.WithLabelValues("transient").Inc()
		return domain.Transient(err)
	}
}

// dispatch runs referral accrual for the primary-token event in-process
// and publishes every event for the background consumers.
func (s *ClaimService) dispatch(ctx context.Context, evs []domain.ClaimEvent) {
	for _, ev := range evs {
		if s.bus != nil {
			if err := s.bus.Publish(ctx, ev); err != nil {
				logger.Warn("publish claim event failed", "event_id", ev.ID, "error", err)
			}
		}
		if s.referrals != nil && ev.Token == domain.PrimaryToken {
			if err := s.referrals.HandleClaimEvent(ctx, ev); err != nil {
				logger.Warn("referral accrual deferred to consumer", "event_id", ev.ID, "error", err)
			}
		}
	}
}

// History returns recent claim events for an account
func (s *ClaimService) History(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ClaimEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	evs, err := s.store.ListClaimEvents(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []domain.ClaimEvent{}
	}
	return evs, nil
}
