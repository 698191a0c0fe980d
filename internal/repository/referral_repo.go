package repository

import (
	"context"
	"errors"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ReferralRepository struct {
	db *pgxpool.Pool
}

func NewReferralRepository(db *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var (
		ref           domain.Referral
		status, bonus string
	)
	if err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &status, &bonus, &ref.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(bonus)
	if err != nil {
		return nil, err
	}
	ref.Status = domain.ReferralStatus(status)
	ref.BonusEarned = d
	return &ref, nil
}

// ApplyReferral creates the referral, sets referred_by and bumps the
// referrer counter in one transaction.
func (r *ReferralRepository) ApplyReferral(ctx context.Context, referrerID, referredID uuid.UUID, now time.Time) (*domain.Referral, error) {
	if referrerID == referredID {
		return nil, store.ErrSelfReferral
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify("begin apply referral", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET referred_by = $1, updated_at = $3
		 WHERE id = $2 AND referred_by IS NULL`,
		referrerID, referredID, now,
	)
	if err != nil {
		return nil, classify("set referred_by", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, referredID).Scan(&exists); err != nil {
			return nil, classify("check referred account", err)
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, store.ErrAlreadyReferred
	}

	ref, err := scanReferral(tx.QueryRow(ctx,
		`INSERT INTO referrals (referrer_id, referred_id, status, created_at)
		 VALUES ($1, $2, 'active', $3)
		 ON CONFLICT (referred_id) DO NOTHING
		 RETURNING id, referrer_id, referred_id, status, bonus_earned::text, created_at`,
		referrerID, referredID, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrAlreadyReferred
	}
	if err != nil {
		return nil, classify("insert referral", err)
	}

	tag, err = tx.Exec(ctx,
		`UPDATE accounts SET total_referrals = total_referrals + 1, updated_at = $2 WHERE id = $1`,
		referrerID, now,
	)
	if err != nil {
		return nil, classify("increment referrals", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit apply referral", err)
	}
	return ref, nil
}

func (r *ReferralRepository) GetActiveReferral(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	ref, err := scanReferral(r.db.QueryRow(ctx,
		`SELECT id, referrer_id, referred_id, status, bonus_earned::text, created_at
		 FROM referrals
		 WHERE referred_id = $1 AND status = 'active'`,
		referredID,
	))
	if err != nil {
		return nil, classify("get active referral", err)
	}
	return ref, nil
}

// AddReferralBonus flips referral_counted on the bonus event and adds the
// amount only when this call did the flip, so retries never double count.
func (r *ReferralRepository) AddReferralBonus(ctx context.Context, referralID int64, bonusKey string, amount decimal.Decimal) (bool, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`WITH flipped AS (
		   UPDATE claim_events SET referral_counted = TRUE
		   WHERE idempotency_key = $2
		     AND NOT referral_counted
		     AND EXISTS (SELECT 1 FROM referrals WHERE id = $1)
		   RETURNING id
		 )
		 UPDATE referrals SET bonus_earned = bonus_earned + $3::numeric
		 WHERE id = $1 AND EXISTS (SELECT 1 FROM flipped)
		 RETURNING id`,
		referralID, bonusKey, amount.String(),
	).Scan(&id)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, classify("add referral bonus", err)
	}

	var counted bool
	err = r.db.QueryRow(ctx,
		`SELECT referral_counted FROM claim_events WHERE idempotency_key = $1`, bonusKey,
	).Scan(&counted)
	if err != nil {
		return false, classify("load bonus event", err)
	}
	if !counted {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// ListReferrals returns all referrals made by an account, newest first
func (r *ReferralRepository) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]domain.ReferredAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.referrer_id, r.referred_id, r.status, r.bonus_earned::text, r.created_at,
		        a.email, a.created_at, a.last_claim_at
		 FROM referrals r
		 JOIN accounts a ON a.id = r.referred_id
		 WHERE r.referrer_id = $1
		 ORDER BY r.created_at DESC`,
		referrerID,
	)
	if err != nil {
		return nil, classify("list referrals", err)
	}
	defer rows.Close()

	var out []domain.ReferredAccount
	for rows.Next() {
		var (
			ra            domain.ReferredAccount
			status, bonus string
		)
		if err := rows.Scan(&ra.ID, &ra.ReferrerID, &ra.ReferredID, &status, &bonus, &ra.CreatedAt,
			&ra.Email, &ra.JoinedAt, &ra.LastClaimAt); err != nil {
			return nil, classify("scan referral", err)
		}
		ra.Status = domain.ReferralStatus(status)
		if ra.BonusEarned, err = decimal.NewFromString(bonus); err != nil {
			return nil, err
		}
		out = append(out, ra)
	}
	return out, classify("list referrals", rows.Err())
}

func (r *ReferralRepository) ReferralStats(ctx context.Context, referrerID uuid.UUID) (domain.ReferralStats, error) {
	var (
		stats domain.ReferralStats
		bonus string
	)
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(bonus_earned), 0)::text
		 FROM referrals
		 WHERE referrer_id = $1 AND status = 'active'`,
		referrerID,
	).Scan(&stats.TotalReferrals, &bonus)
	if err != nil {
		return stats, classify("referral stats", err)
	}
	stats.BonusEarned, err = decimal.NewFromString(bonus)
	return stats, err
}

// Leaderboard returns accounts ordered by referral count
func (r *ReferralRepository) Leaderboard(ctx context.Context, limit int) ([]domain.ReferralLeader, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, email, referral_code, total_referrals
		 FROM accounts
		 WHERE total_referrals > 0
		 ORDER BY total_referrals DESC, created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, classify("referral leaderboard", err)
	}
	defer rows.Close()

	var out []domain.ReferralLeader
	for rows.Next() {
		l := domain.ReferralLeader{Rank: len(out) + 1}
		if err := rows.Scan(&l.AccountID, &l.Email, &l.ReferralCode, &l.TotalReferrals); err != nil {
			return nil, classify("scan leader", err)
		}
		out = append(out, l)
	}
	return out, classify("referral leaderboard", rows.Err())
}
