package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"teos_mining/internal/domain"
	"teos_mining/internal/logger"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const minPasswordLength = 8

type SessionEventKind string

const (
	SignedIn  SessionEventKind = "signed_in"
	SignedOut SessionEventKind = "signed_out"
)

// SessionEvent tells listeners that a session started or ended
type SessionEvent struct {
	Kind                SessionEventKind
	AccountID           uuid.UUID
	Email               string
	PendingReferralCode string
}

type SessionListener func(ctx context.Context, ev SessionEvent) error

// IdentityService owns credentials and session tokens
type IdentityService struct {
	store  store.Identities
	tokens *TokenManager
	audit  *AuditService
	now    Clock

	mu        sync.RWMutex
	listeners []SessionListener
}

func NewIdentityService(s store.Identities, tokens *TokenManager, audit *AuditService) *IdentityService {
	return &IdentityService{store: s, tokens: tokens, audit: audit, now: systemClock}
}

// OnSessionChange registers a listener called synchronously on sign-in and
// sign-out. A sign-in listener error fails the sign-in.
func (s *IdentityService) OnSessionChange(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *IdentityService) emit(ctx context.Context, ev SessionEvent) error {
	s.mu.RLock()
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *IdentityService) SignUp(ctx context.Context, email, password, referralCode string) (*domain.Identity, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, domain.Invalid("email", "invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, domain.Invalid("password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	identity := &domain.Identity{
		ID:                  uuid.New(),
		Email:               email,
		PasswordHash:        string(hash),
		PendingReferralCode: strings.ToUpper(strings.TrimSpace(referralCode)),
		CreatedAt:           s.now(),
	}
	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &identity.ID, domain.AuditActionSignUp, domain.AuditCategoryAuth, map[string]interface{}{
		"referral_code": identity.PendingReferralCode,
	})
	return identity, nil
}

// SignInResult carries the new token and the identity it belongs to
type SignInResult struct {
	Token    string
	Claims   *TokenClaims
	Identity *domain.Identity
}

func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	identity, err := s.store.GetIdentityByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(identity.ID)
	if err != nil {
		return nil, err
	}

	if err := s.emit(ctx, SessionEvent{
		Kind:                SignedIn,
		AccountID:           identity.ID,
		Email:               identity.Email,
		PendingReferralCode: identity.PendingReferralCode,
	}); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &identity.ID, domain.AuditActionLogin, domain.AuditCategoryAuth, nil)
	return &SignInResult{Token: token, Claims: claims, Identity: identity}, nil
}

// Authenticate resolves a bearer token to its account id
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*TokenClaims, error) {
	return s.tokens.Parse(ctx, token)
}

func (s *IdentityService) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(ctx, token)
	if err != nil {
		return err
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return err
	}

	if err := s.emit(ctx, SessionEvent{Kind: SignedOut, AccountID: claims.AccountID}); err != nil {
		logger.Warn("sign-out listener failed", "account_id", claims.AccountID, "error", err)
	}
	s.audit.Log(ctx, &claims.AccountID, domain.AuditActionLogout, domain.AuditCategoryAuth, nil)
	return nil
}
