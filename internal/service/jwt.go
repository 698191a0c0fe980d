package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

const defaultTokenTTL = 24 * time.Hour

// TokenClaims is what a verified session token carries
type TokenClaims struct {
	AccountID uuid.UUID
	JTI       string
	ExpiresAt time.Time
}

// TokenManager issues and verifies HS256 session tokens
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     Clock
}

func NewTokenManager(secret string, revoker Revoker) *TokenManager {
	if secret == "" {
		panic("JWT secret is empty")
	}
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &TokenManager{
		secret:  []byte(secret),
		ttl:     defaultTokenTTL,
		revoker: revoker,
		now:     time.Now,
	}
}

func (m *TokenManager) Issue(accountID uuid.UUID) (string, *TokenClaims, error) {
	now := m.now()
	tc := &TokenClaims{
		AccountID: accountID,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
	}
	claims := jwt.MapClaims{
		"sub": accountID.String(),
		"jti": tc.JTI,
		"exp": tc.ExpiresAt.Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, tc, nil
}

// Parse verifies signature, time claims and revocation
func (m *TokenManager) Parse(ctx context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	revoked, err := m.revoker.IsRevoked(ctx, jti)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &TokenClaims{AccountID: id, JTI: jti, ExpiresAt: exp.Time}, nil
}

// Revoke blocks the token until it would have expired anyway
func (m *TokenManager) Revoke(ctx context.Context, tc *TokenClaims) error {
	ttl := tc.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.revoker.Revoke(ctx, tc.JTI, ttl)
}
