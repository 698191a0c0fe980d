package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, email, tier, tier_upgraded_at, tier_expires_at, last_claim_at, total_claims,
	petition_signed, telegram_joined, facebook_followed, x_followed, civic_verified, civic_verified_at,
	referral_code, referred_by, total_referrals, created_at, updated_at`

// verification steps map one to one onto boolean columns
var stepColumns = map[domain.VerificationStep]string{
	domain.StepPetitionSigned:   "petition_signed",
	domain.StepTelegramJoined:   "telegram_joined",
	domain.StepFacebookFollowed: "facebook_followed",
	domain.StepXFollowed:        "x_followed",
}

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                                       domain.Account
		tier                                    string
		petition, telegram, facebook, xFollowed bool
	)
	if err := row.Scan(
		&a.ID,
		&a.Email,
		&tier,
		&a.TierUpgradedAt,
		&a.TierExpiresAt,
		&a.LastClaimAt,
		&a.TotalClaims,
		&petition,
		&telegram,
		&facebook,
		&xFollowed,
		&a.CivicVerified,
		&a.CivicVerifiedAt,
		&a.ReferralCode,
		&a.ReferredBy,
		&a.TotalReferrals,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Tier = domain.Tier(tier)
	a.Verification = domain.VerificationFlags{
		domain.StepPetitionSigned:   petition,
		domain.StepTelegramJoined:   telegram,
		domain.StepFacebookFollowed: facebook,
		domain.StepXFollowed:        xFollowed,
	}
	return &a, nil
}

// CreateAccount inserts the account and its zero balances in one transaction
func (r *AccountRepository) CreateAccount(ctx context.Context, a *domain.Account) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify("begin create account", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (id, email, tier, referral_code, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		a.ID, a.Email, string(a.Tier), a.ReferralCode, a.CreatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "accounts_referral_code_key"):
			return store.ErrReferralCodeTaken
		case isUniqueViolation(err, "accounts_pkey"):
			return store.ErrAccountExists
		}
		return classify("insert account", err)
	}

	for _, token := range domain.Tokens {
		if _, err := tx.Exec(ctx,
			`INSERT INTO balances (account_id, token, amount) VALUES ($1, $2, 0)
			 ON CONFLICT (account_id, token) DO NOTHING`,
			a.ID, string(token),
		); err != nil {
			return classify("insert balance", err)
		}
	}

	return classify("commit create account", tx.Commit(ctx))
}

func (r *AccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get account", err)
	}
	return a, nil
}

func (r *AccountRepository) GetAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE referral_code = $1`,
		strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		return nil, classify("get account by referral code", err)
	}
	return a, nil
}

// RecordVerificationStep sets the step flag and, once all flags are set,
// marks the account civic verified.
func (r *AccountRepository) RecordVerificationStep(ctx context.Context, cmd domain.RecordVerificationStep, now time.Time) (*domain.Account, error) {
	col, ok := stepColumns[cmd.Step]
	if !ok {
		return nil, domain.Invalid("step", "unknown verification step "+string(cmd.Step))
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify("begin verification", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE accounts SET %s = TRUE, updated_at = $2 WHERE id = $1`, col),
		cmd.AccountID, now,
	)
	if err != nil {
		return nil, classify("record verification step", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}

	a, err := scanAccount(tx.QueryRow(ctx,
		`UPDATE accounts
		 SET civic_verified = TRUE, civic_verified_at = COALESCE(civic_verified_at, $2)
		 WHERE id = $1 AND petition_signed AND telegram_joined AND facebook_followed AND x_followed
		 RETURNING `+accountColumns,
		cmd.AccountID, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		a, err = scanAccount(tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, cmd.AccountID))
	}
	if err != nil {
		return nil, classify("load account", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit verification", err)
	}
	return a, nil
}

func (r *AccountRepository) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, classify("count accounts", err)
}

// SweepExpiredTiers resets every paid tier whose expiry is strictly before now
func (r *AccountRepository) SweepExpiredTiers(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE accounts
		 SET tier = 'free', tier_expires_at = NULL, updated_at = $1
		 WHERE tier <> 'free' AND tier_expires_at IS NOT NULL AND tier_expires_at < $1
		 RETURNING id`,
		now,
	)
	if err != nil {
		return nil, classify("sweep expired tiers", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, classify("scan swept account", err)
		}
		ids = append(ids, id)
	}
	return ids, classify("sweep expired tiers", rows.Err())
}
