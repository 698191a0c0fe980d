package service

import (
	"context"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/store"

	"github.com/google/uuid"
)

// AuditService handles audit logging. Failures are logged, never returned.
type AuditService struct {
	repo store.Audit
}

// NewAuditService creates a new audit service
func NewAuditService(repo store.Audit) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, accountID *uuid.UUID, action, category string, details map[string]interface{}) {
	s.LogWithRequest(ctx, accountID, action, category, "", "", details)
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, accountID *uuid.UUID, action, category, ip, userAgent string, details map[string]interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	if details == nil {
		details = make(map[string]interface{})
	}
	log := &domain.AuditLog{
		AccountID: accountID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "account_id", accountID)
	}
}

// LogClaim logs a successful claim
func (s *AuditService) LogClaim(ctx context.Context, out *domain.ClaimOutcome) {
	credited := make(map[string]interface{}, len(out.Credited))
	for token, amount := range out.Credited {
		credited[string(token)] = amount.String()
	}
	s.Log(ctx, &out.AccountID, domain.AuditActionClaim, domain.AuditCategoryMining, map[string]interface{}{
		"tier":     string(out.Tier),
		"credited": credited,
	})
}

// LogReferralBonus logs a bonus credited to a referrer
func (s *AuditService) LogReferralBonus(ctx context.Context, referrerID uuid.UUID, ev *domain.ClaimEvent, sourceEventID uuid.UUID) {
	s.Log(ctx, &referrerID, domain.AuditActionReferralBonus, domain.AuditCategoryReferral, map[string]interface{}{
		"amount":          ev.Amount.String(),
		"token":           string(ev.Token),
		"source_event_id": sourceEventID.String(),
	})
}

// LogPayment logs a payment lifecycle step
func (s *AuditService) LogPayment(ctx context.Context, action string, p *domain.Payment) {
	s.Log(ctx, &p.AccountID, action, domain.AuditCategoryPayment, map[string]interface{}{
		"payment_id":      p.ID.String(),
		"tier":            string(p.Tier),
		"amount":          p.Amount.String(),
		"currency":        p.Currency,
		"transaction_ref": p.TransactionRef,
		"status":          string(p.Status),
	})
}

// LogAdminAction logs an admin action without a target account
func (s *AuditService) LogAdminAction(ctx context.Context, actor, action string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["actor"] = actor
	s.Log(ctx, nil, action, domain.AuditCategoryAdmin, details)
}

// AccountAuditLogs returns audit logs for an account
func (s *AuditService) AccountAuditLogs(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, accountID, limit)
}
