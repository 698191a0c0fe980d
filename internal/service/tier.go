package service

import (
	"context"
	"strings"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/metrics"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentNotifier is told about new payment proofs, e.g. the admin bot
type PaymentNotifier interface {
	NotifyPaymentSubmitted(ctx context.Context, p *domain.Payment, acc *domain.Account)
}

// Wallets are the addresses users pay to
type Wallets struct {
	Solana string `json:"solana"`
	Pi     string `json:"pi"`
}

// UpgradeInfo is the upgrade page payload
type UpgradeInfo struct {
	CurrentTier   domain.Tier                     `json:"current_tier"`
	TierExpiresAt *time.Time                      `json:"tier_expires_at,omitempty"`
	Pricing       map[domain.Tier]decimal.Decimal `json:"pricing"`
	Available     []domain.Tier                   `json:"available"`
	Wallets       Wallets                         `json:"wallets"`
	Payments      []domain.Payment                `json:"payments"`
}

type TierService struct {
	store    store.Store
	audit    *AuditService
	notifier PaymentNotifier
	wallets  Wallets
	now      Clock
}

func NewTierService(s store.Store, audit *AuditService, wallets Wallets) *TierService {
	return &TierService{store: s, audit: audit, wallets: wallets, now: systemClock}
}

// SetNotifier wires the admin notification channel after construction
func (s *TierService) SetNotifier(n PaymentNotifier) {
	s.notifier = n
}

func (s *TierService) Info(ctx context.Context, acc *domain.Account) (*UpgradeInfo, error) {
	payments, err := s.store.ListPayments(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	current := acc.EffectiveTier(s.now())
	var available []domain.Tier
	for _, t := range []domain.Tier{domain.TierBasic, domain.TierPro} {
		if t.Above(current) {
			available = append(available, t)
		}
	}
	if available == nil {
		available = []domain.Tier{}
	}
	return &UpgradeInfo{
		CurrentTier:   current,
		TierExpiresAt: acc.TierExpiresAt,
		Pricing:       domain.TierPricing,
		Available:     available,
		Wallets:       s.wallets,
		Payments:      payments,
	}, nil
}

// SubmitPayment records a pending payment proof for a strictly higher tier
func (s *TierService) SubmitPayment(ctx context.Context, cmd domain.SubmitPayment) (*domain.Payment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, cmd.AccountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !cmd.Tier.Above(acc.EffectiveTier(now)) {
		return nil, store.ErrTierNotHigher
	}

	p := &domain.Payment{
		ID:             uuid.New(),
		AccountID:      acc.ID,
		Tier:           cmd.Tier,
		Amount:         domain.TierPricing[cmd.Tier],
		Currency:       strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		TransactionRef: strings.TrimSpace(cmd.TransactionRef),
		WalletAddress:  strings.TrimSpace(cmd.WalletAddress),
		Status:         domain.PaymentStatusPending,
		SubmittedAt:    now,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	metrics.Payments.WithLabelValues(string(domain.PaymentStatusPending)).Inc()
	s.audit.LogPayment(ctx, domain.AuditActionPaymentSubmit, p)
	logger.Info("payment submitted", "payment_id", p.ID, "account_id", acc.ID, "tier", p.Tier, "currency", p.Currency)

	if s.notifier != nil {
		s.notifier.NotifyPaymentSubmitted(ctx, p, acc)
	}
	return p, nil
}

// VerifyPayment is the trusted verification path. Approval confirms the
// payment and advances the tier atomically; rejection marks it failed.
func (s *TierService) VerifyPayment(ctx context.Context, id uuid.UUID, approved bool, actor string) (*domain.Payment, *domain.Account, error) {
	now := s.now()
	if !approved {
		p, err := s.store.RejectPayment(ctx, id, now)
		if err != nil {
			return nil, nil, err
		}
		metrics.Payments.WithLabelValues(string(domain.PaymentStatusFailed)).Inc()
		s.audit.LogPayment(ctx, domain.AuditActionPaymentReject, p)
		logger.Info("payment rejected", "payment_id", id, "actor", actor)
		return p, nil, nil
	}

	pending, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if pending.Status != domain.PaymentStatusPending {
		return nil, nil, store.ErrPaymentProcessed
	}
	advance := domain.AdvanceTier{AccountID: pending.AccountID, Tier: pending.Tier}
	if err := advance.Validate(); err != nil {
		return nil, nil, err
	}

	p, acc, err := s.store.ConfirmPayment(ctx, id, now)
	if err != nil {
		return nil, nil, err
	}
	metrics.Payments.WithLabelValues(string(domain.PaymentStatusConfirmed)).Inc()
	s.audit.LogPayment(ctx, domain.AuditActionPaymentConfirm, p)
	logger.Info("payment confirmed", "payment_id", id, "account_id", acc.ID, "tier", acc.Tier, "expires_at", acc.TierExpiresAt, "actor", actor)
	return p, acc, nil
}

// SweepExpiredTiers resets tiers whose expiry has passed
func (s *TierService) SweepExpiredTiers(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.store.SweepExpiredTiers(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		metrics.TiersDowngraded.Add(float64(len(ids)))
		for _, id := range ids {
			id := id
			s.audit.Log(ctx, &id, domain.AuditActionTierSweep, domain.AuditCategoryAdmin, nil)
		}
		logger.Info("expired tiers reset", "count", len(ids))
	}
	return ids, nil
}

func (s *TierService) PaymentHistory(ctx context.Context, accountID uuid.UUID) ([]domain.Payment, error) {
	p, err := s.store.ListPayments(ctx, accountID)
	if p == nil && err == nil {
		p = []domain.Payment{}
	}
	return p, err
}

func (s *TierService) PendingPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	p, err := s.store.ListPendingPayments(ctx, limit)
	if p == nil && err == nil {
		p = []domain.Payment{}
	}
	return p, err
}

func (s *TierService) Payment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.store.GetPayment(ctx, id)
}
