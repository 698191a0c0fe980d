package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"

	"github.com/google/uuid"
)

type recordingNotifier struct {
	payments []*domain.Payment
}

func (n *recordingNotifier) NotifyPaymentSubmitted(ctx context.Context, p *domain.Payment, acc *domain.Account) {
	n.payments = append(n.payments, p)
}

func piPayment(id uuid.UUID, tier domain.Tier) domain.SubmitPayment {
	return domain.SubmitPayment{
		AccountID:      id,
		Tier:           tier,
		Currency:       "pi",
		TransactionRef: strings.Repeat("p", 40) + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

func TestSubmitPaymentRequiresHigherTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &recordingNotifier{}
	f.tiers.SetNotifier(n)
	acc := f.newAccount(t, true)
	f.upgrade(t, acc.ID, domain.TierPro)

	if _, err := f.tiers.SubmitPayment(ctx, piPayment(acc.ID, domain.TierBasic)); !errors.Is(err, store.ErrTierNotHigher) {
		t.Fatalf("expected lower tier to be rejected, got %v", err)
	}
	if !errors.Is(store.ErrTierNotHigher, domain.ErrValidation) {
		t.Fatalf("tier not higher should be a validation error")
	}
	if len(n.payments) != 1 {
		t.Fatalf("expected one notification for the upgrade payment, got %d", len(n.payments))
	}
}

func TestSubmitPaymentDuplicateReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.newAccount(t, true)
	cmd := piPayment(acc.ID, domain.TierBasic)

	p, err := f.tiers.SubmitPayment(ctx, cmd)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.Status != domain.PaymentStatusPending || !p.Amount.Equal(domain.TierPricing[domain.TierBasic]) || p.Currency != "PI" {
		t.Fatalf("unexpected payment %+v", p)
	}
	if _, err := f.tiers.SubmitPayment(ctx, cmd); !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
}

func TestVerifyPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.newAccount(t, true)

	p, err := f.tiers.SubmitPayment(ctx, piPayment(acc.ID, domain.TierBasic))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	confirmed, updated, err := f.tiers.VerifyPayment(ctx, p.ID, true, "admin")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.PaymentStatusConfirmed || updated.Tier != domain.TierBasic {
		t.Fatalf("unexpected confirm result %+v %+v", confirmed, updated)
	}
	if updated.TierExpiresAt == nil || !updated.TierExpiresAt.Equal(f.now.Add(domain.TierDuration)) {
		t.Fatalf("expected expiry 30 days out, got %v", updated.TierExpiresAt)
	}
	if _, _, err := f.tiers.VerifyPayment(ctx, p.ID, true, "admin"); !errors.Is(err, store.ErrPaymentProcessed) {
		t.Fatalf("expected processed payment, got %v", err)
	}

	second, err := f.tiers.SubmitPayment(ctx, piPayment(acc.ID, domain.TierPro))
	if err != nil {
		t.Fatalf("submit pro: %v", err)
	}
	rejected, _, err := f.tiers.VerifyPayment(ctx, second.ID, false, "admin")
	if err != nil || rejected.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %+v (%v)", rejected, err)
	}
	got, _ := f.store.GetAccount(ctx, acc.ID)
	if got.Tier != domain.TierBasic {
		t.Fatalf("rejection must not change the tier")
	}

	history, _ := f.tiers.PaymentHistory(ctx, acc.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(history))
	}
	pending, _ := f.tiers.PendingPayments(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected no pending payments, got %d", len(pending))
	}
}

func TestConfirmStaleLowerPaymentStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.newAccount(t, true)

	basic, err := f.tiers.SubmitPayment(ctx, piPayment(acc.ID, domain.TierBasic))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.upgrade(t, acc.ID, domain.TierPro)

	if _, _, err := f.tiers.VerifyPayment(ctx, basic.ID, true, "admin"); !errors.Is(err, store.ErrTierNotHigher) {
		t.Fatalf("expected tier not higher, got %v", err)
	}
	p, _ := f.tiers.Payment(ctx, basic.ID)
	if p.Status != domain.PaymentStatusPending {
		t.Fatalf("payment must stay pending, got %s", p.Status)
	}
}

func TestSweepExpiredTiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.newAccount(t, true)
	f.upgrade(t, acc.ID, domain.TierPro)

	f.now = f.now.Add(domain.TierDuration)
	ids, err := f.tiers.SweepExpiredTiers(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("exact expiry must not be swept, got %v (%v)", ids, err)
	}

	f.now = f.now.Add(time.Second)
	ids, err = f.tiers.SweepExpiredTiers(ctx)
	if err != nil || len(ids) != 1 || ids[0] != acc.ID {
		t.Fatalf("expected one reset, got %v (%v)", ids, err)
	}
	got, _ := f.store.GetAccount(ctx, acc.ID)
	if got.Tier != domain.TierFree || got.TierExpiresAt != nil {
		t.Fatalf("expected free tier after sweep, got %+v", got)
	}

	info, err := f.tiers.Info(ctx, got)
	if err != nil || len(info.Available) != 2 {
		t.Fatalf("expected both upgrades available, got %+v (%v)", info, err)
	}
}
