package repository

import (
	"context"
	"strings"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdentityRepository struct {
	db *pgxpool.Pool
}

func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var i domain.Identity
	if err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.PendingReferralCode, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *IdentityRepository) CreateIdentity(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO identities (id, email, password_hash, pending_referral_code, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		i.ID, i.Email, i.PasswordHash, i.PendingReferralCode, i.CreatedAt,
	)
	if isUniqueViolation(err, "identities_email_key") {
		return store.ErrEmailTaken
	}
	return classify("create identity", err)
}

func (r *IdentityRepository) GetIdentity(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	i, err := scanIdentity(r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, pending_referral_code, created_at FROM identities WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get identity", err)
	}
	return i, nil
}

func (r *IdentityRepository) GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	i, err := scanIdentity(r.db.QueryRow(ctx,
		`SELECT id, email, password_hash, pending_referral_code, created_at
		 FROM identities WHERE LOWER(email) = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, classify("get identity by email", err)
	}
	return i, nil
}
