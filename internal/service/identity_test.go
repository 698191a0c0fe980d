package service

import (
	"context"
	"errors"
	"testing"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"
)

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.identity.SignUp(ctx, "not-an-email", "password123", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	if _, err := f.identity.SignUp(ctx, "a@example.com", "short", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected short password rejection, got %v", err)
	}
	if _, err := f.identity.SignUp(ctx, "A@Example.com ", "password123", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.identity.SignUp(ctx, "a@example.com", "password123", ""); !errors.Is(err, store.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
}

func TestSignInCreatesAccountAndAppliesReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.newAccount(t, true)

	identity, err := f.identity.SignUp(ctx, "miner@example.com", "password123", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := f.identity.SignIn(ctx, "miner@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := f.identity.SignIn(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	res, err := f.identity.SignIn(ctx, "Miner@Example.com", "password123")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if res.Claims.AccountID != identity.ID {
		t.Fatalf("token issued for the wrong account")
	}

	acc, err := f.store.GetAccount(ctx, identity.ID)
	if err != nil {
		t.Fatalf("account not created on sign-in: %v", err)
	}
	if acc.Tier != domain.TierFree || acc.CivicVerified || !ValidReferralCode(acc.ReferralCode) {
		t.Fatalf("unexpected defaults %+v", acc)
	}
	if acc.ReferredBy == nil || *acc.ReferredBy != referrer.ID {
		t.Fatalf("pending referral code was not applied")
	}
	bal, _ := f.store.GetBalances(ctx, acc.ID)
	for _, token := range domain.Tokens {
		if !bal.Get(token).IsZero() {
			t.Fatalf("expected zero %s balance", token)
		}
	}

	// a second sign-in keeps the same account
	if _, err := f.identity.SignIn(ctx, "miner@example.com", "password123"); err != nil {
		t.Fatalf("second signin: %v", err)
	}
	again, _ := f.store.GetAccount(ctx, identity.ID)
	if again.ReferralCode != acc.ReferralCode {
		t.Fatalf("account was recreated")
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.identity.SignUp(ctx, "out@example.com", "password123", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	res, err := f.identity.SignIn(ctx, "out@example.com", "password123")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}

	if _, err := f.identity.Authenticate(ctx, res.Token); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := f.identity.SignOut(ctx, res.Token); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, err := f.identity.Authenticate(ctx, res.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked token, got %v", err)
	}
	if _, err := f.identity.Authenticate(ctx, res.Token+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	f := newFixture(t)
	acc := f.newAccount(t, false)
	token, _, err := f.tokens.Issue(acc.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.now = f.now.Add(defaultTokenTTL + 1)
	if _, err := f.tokens.Parse(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
