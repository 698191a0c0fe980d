package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
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

const (
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeLength   = 6
	defaultCampaign      = "teos_mining"
	recentSignupWindow   = 7 * 24 * time.Hour
)

var referralCodePattern = regexp.MustCompile(`^TEOS[A-Z0-9]{6}$`)

// GenerateReferralCode returns TEOS followed by six random [A-Z0-9]
func GenerateReferralCode() (string, error) {
	var b strings.Builder
	b.WriteString(domain.ReferralCodePrefix)
	alphabetSize := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidReferralCode reports whether code has the TEOS + 6 format
func ValidReferralCode(code string) bool {
	return referralCodePattern.MatchString(code)
}

type ReferralService struct {
	store   store.Store
	bus     events.Bus
	audit   *AuditService
	baseURL string
	now     Clock
}

func NewReferralService(s store.Store, bus events.Bus, audit *AuditService, baseURL string) *ReferralService {
	return &ReferralService{store: s, bus: bus, audit: audit, baseURL: strings.TrimRight(baseURL, "/"), now: systemClock}
}

// HandleClaimEvent credits 5% of a referred account's primary-token claim
// to its referrer. Safe to call any number of times for the same event.
func (s *ReferralService) HandleClaimEvent(ctx context.Context, ev domain.ClaimEvent) error {
	if ev.Token != domain.PrimaryToken || ev.ReferralBonus {
		return nil
	}

	ref, err := s.store.GetActiveReferral(ctx, ev.AccountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup referral: %w", err)
	}

	bonus := mining.ReferralBonus(ev.Amount)
	if !bonus.IsPositive() {
		return nil
	}
	key := domain.ReferralIdempotencyKey(ev.ID)

	credited, applied, err := s.store.CreditBalance(ctx, domain.CreditBalance{
		AccountID:      ref.ReferrerID,
		Token:          domain.PrimaryToken,
		Amount:         bonus,
		Tier:           ev.Tier,
		ReferralBonus:  true,
		IdempotencyKey: key,
	}, s.now())
	if err != nil {
		metrics.ReferralBonuses.WithLabelValues("error").Inc()
		return fmt.Errorf("credit referral bonus: %w", err)
	}

	// runs on every delivery so a failure here is retried without
	// touching the balance again
	if _, err := s.store.AddReferralBonus(ctx, ref.ID, key, bonus); err != nil {
		metrics.ReferralBonuses.WithLabelValues("error").Inc()
		return fmt.Errorf("add referral bonus: %w", err)
	}

	if !applied {
		metrics.ReferralBonuses.WithLabelValues("duplicate").Inc()
		return nil
	}

	metrics.ReferralBonuses.WithLabelValues("credited").Inc()
	metrics.TokensCredited.WithLabelValues(string(domain.PrimaryToken), "referral").Add(bonus.InexactFloat64())
	s.audit.LogReferralBonus(ctx, ref.ReferrerID, credited, ev.ID)
	logger.Info("referral bonus credited",
		"referrer_id", ref.ReferrerID, "referred_id", ev.AccountID, "amount", bonus.String(), "event_id", ev.ID)

	if s.bus != nil {
		if err := s.bus.Publish(ctx, *credited); err != nil {
			logger.Warn("publish referral bonus event failed", "event_id", credited.ID, "error", err)
		}
	}
	return nil
}

// ApplyCode links accountID to the owner of code
func (s *ReferralService) ApplyCode(ctx context.Context, accountID uuid.UUID, code string) (*domain.Referral, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidReferralCode(code) {
		return nil, domain.Invalid("referral_code", "invalid referral code format")
	}

	referrer, err := s.store.GetAccountByReferralCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Invalid("referral_code", "referral code not found")
	}
	if err != nil {
		return nil, err
	}
	if referrer.ID == accountID {
		return nil, store.ErrSelfReferral
	}

	ref, err := s.store.ApplyReferral(ctx, referrer.ID, accountID, s.now())
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, &accountID, domain.AuditActionReferralApply, domain.AuditCategoryReferral, map[string]interface{}{
		"referral_code": code,
		"referrer_id":   referrer.ID.String(),
	})
	return ref, nil
}

// Link builds the shareable sign-up link for a referral code
func (s *ReferralService) Link(code, campaign string) string {
	if campaign == "" {
		campaign = defaultCampaign
	}
	q := url.Values{}
	q.Set("ref", code)
	q.Set("utm_source", "referral")
	q.Set("utm_medium", "link")
	q.Set("utm_campaign", campaign)
	return s.baseURL + "/?" + q.Encode()
}

// ReferralOverview is the referral page payload
type ReferralOverview struct {
	Code      string                   `json:"referral_code"`
	Link      string                   `json:"referral_link"`
	Stats     domain.ReferralStats     `json:"stats"`
	Referrals []domain.ReferredAccount `json:"referrals"`
}

func (s *ReferralService) Overview(ctx context.Context, acc *domain.Account) (*ReferralOverview, error) {
	stats, err := s.store.ReferralStats(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListReferrals(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.ReferredAccount{}
	}
	return &ReferralOverview{
		Code:      acc.ReferralCode,
		Link:      s.Link(acc.ReferralCode, ""),
		Stats:     stats,
		Referrals: list,
	}, nil
}

// PerformanceReport summarises how a referrer's network is doing
type PerformanceReport struct {
	TotalReferrals          int                      `json:"total_referrals"`
	TotalBonusEarned        decimal.Decimal          `json:"total_bonus_earned"`
	AverageBonusPerReferral decimal.Decimal          `json:"average_bonus_per_referral"`
	ActiveMiners            int                      `json:"active_miners"`
	RecentSignups           int                      `json:"recent_signups"`
	PotentialEarnings       mining.PotentialEarnings `json:"potential_earnings"`
}

func (s *ReferralService) Report(ctx context.Context, acc *domain.Account) (*PerformanceReport, error) {
	stats, err := s.store.ReferralStats(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListReferrals(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &PerformanceReport{
		TotalReferrals:          stats.TotalReferrals,
		TotalBonusEarned:        stats.BonusEarned,
		AverageBonusPerReferral: decimal.Zero,
		PotentialEarnings:       mining.ProjectEarnings(acc.EffectiveTier(now), stats.TotalReferrals),
	}
	if stats.TotalReferrals > 0 {
		report.AverageBonusPerReferral = stats.BonusEarned.Div(decimal.NewFromInt(int64(stats.TotalReferrals)))
	}
	for _, r := range list {
		if r.Status != domain.ReferralStatusActive {
			continue
		}
		if r.LastClaimAt != nil {
			report.ActiveMiners++
		}
		if now.Sub(r.JoinedAt) <= recentSignupWindow {
			report.RecentSignups++
		}
	}
	return report, nil
}

func (s *ReferralService) Leaderboard(ctx context.Context, limit int) ([]domain.ReferralLeader, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	board, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if board == nil {
		board = []domain.ReferralLeader{}
	}
	return board, nil
}
