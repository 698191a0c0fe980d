package repository

import (
	"context"
	"errors"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/mining"
	"teos_mining/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type MiningRepository struct {
	db *pgxpool.Pool
}

func NewMiningRepository(db *pgxpool.Pool) *MiningRepository {
	return &MiningRepository{db: db}
}

// ExecuteClaim advances last_claim_at with a single conditional update and
// credits the rewards of the tier that update observed. Both happen in one
// transaction, so two concurrent claims cannot both pass the cooldown.
func (r *MiningRepository) ExecuteClaim(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.ClaimOutcome, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify("begin claim", err)
	}
	defer tx.Rollback(ctx)

	var tier string
	err = tx.QueryRow(ctx,
		`UPDATE accounts
		 SET last_claim_at = $2, total_claims = total_claims + 1, updated_at = $2
		 WHERE id = $1
		   AND civic_verified
		   AND (last_claim_at IS NULL OR last_claim_at <= $2::timestamptz - INTERVAL '24 hours')
		 RETURNING CASE
		   WHEN tier <> 'free' AND tier_expires_at IS NOT NULL AND tier_expires_at < $2 THEN 'free'
		   ELSE tier
		 END`,
		accountID, now,
	).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.declineReason(ctx, tx, accountID)
	}
	if err != nil {
		return nil, classify("claim", err)
	}

	effective := domain.Tier(tier)
	rewards := mining.RewardsFor(effective)
	out := &domain.ClaimOutcome{
		AccountID: accountID,
		Tier:      effective,
		ClaimedAt: now,
		Credited:  make(map[domain.Token]decimal.Decimal, len(domain.Tokens)),
	}

	for _, token := range domain.Tokens {
		amount := rewards[token]
		id := uuid.New()
		ev := domain.ClaimEvent{
			ID:             id,
			AccountID:      accountID,
			Token:          token,
			Amount:         amount,
			Tier:           effective,
			IdempotencyKey: domain.ClaimIdempotencyKey(id),
			CreatedAt:      now,
		}
		if err := insertEvent(ctx, tx, &ev); err != nil {
			return nil, classify("insert claim event", err)
		}
		if err := addBalance(ctx, tx, accountID, token, amount); err != nil {
			return nil, classify("credit balance", err)
		}
		out.Credited[token] = amount
		out.Events = append(out.Events, ev)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("commit claim", err)
	}
	return out, nil
}

// declineReason explains why the conditional update matched nothing
func (r *MiningRepository) declineReason(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) error {
	var verified bool
	err := tx.QueryRow(ctx, `SELECT civic_verified FROM accounts WHERE id = $1`, accountID).Scan(&verified)
	if err != nil {
		return classify("load claim state", err)
	}
	if !verified {
		return &domain.RejectedError{Reason: store.ReasonNotVerified}
	}
	return &domain.RejectedError{Reason: store.ReasonCooldown}
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev *domain.ClaimEvent) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO claim_events (id, account_id, token, amount, tier, referral_bonus, idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		ev.ID, ev.AccountID, string(ev.Token), ev.Amount.String(), string(ev.Tier), ev.ReferralBonus, ev.IdempotencyKey, ev.CreatedAt,
	)
	return err
}

func addBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, token domain.Token, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO balances (account_id, token, amount, updated_at)
		 VALUES ($1, $2, $3::numeric, NOW())
		 ON CONFLICT (account_id, token)
		 DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()`,
		accountID, string(token), amount.String(),
	)
	return err
}

// CreditBalance records the event under its idempotency key and only
// touches the balance when the insert actually happened.
func (r *MiningRepository) CreditBalance(ctx context.Context, cmd domain.CreditBalance, now time.Time) (*domain.ClaimEvent, bool, error) {
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, classify("begin credit", err)
	}
	defer tx.Rollback(ctx)

	ev := domain.ClaimEvent{
		ID:             uuid.New(),
		AccountID:      cmd.AccountID,
		Token:          cmd.Token,
		Amount:         cmd.Amount,
		Tier:           cmd.Tier,
		ReferralBonus:  cmd.ReferralBonus,
		IdempotencyKey: cmd.IdempotencyKey,
		CreatedAt:      now,
	}
	if ev.Tier == "" {
		ev.Tier = domain.TierFree
	}

	var inserted uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO claim_events (id, account_id, token, amount, tier, referral_bonus, idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		 ON CONFLICT (idempotency_key) DO NOTHING
		 RETURNING id`,
		ev.ID, ev.AccountID, string(ev.Token), ev.Amount.String(), string(ev.Tier), ev.ReferralBonus, ev.IdempotencyKey, ev.CreatedAt,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanEvent(tx.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM claim_events WHERE idempotency_key = $1`, cmd.IdempotencyKey))
		if err != nil {
			return nil, false, classify("load existing credit", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, classify("insert credit event", err)
	}

	if err := addBalance(ctx, tx, cmd.AccountID, cmd.Token, cmd.Amount); err != nil {
		return nil, false, classify("credit balance", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, classify("commit credit", err)
	}
	return &ev, true, nil
}

func (r *MiningRepository) GetBalances(ctx context.Context, accountID uuid.UUID) (domain.Balances, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token, amount::text FROM balances WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, classify("get balances", err)
	}
	defer rows.Close()

	bal := domain.ZeroBalances()
	found := false
	for rows.Next() {
		var token, amount string
		if err := rows.Scan(&token, &amount); err != nil {
			return nil, classify("scan balance", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		bal[domain.Token(token)] = d
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, classify("get balances", err)
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	return bal, nil
}

const eventColumns = `id, account_id, token, amount::text, tier, referral_bonus, idempotency_key, created_at`

func scanEvent(row pgx.Row) (*domain.ClaimEvent, error) {
	var (
		ev            domain.ClaimEvent
		token, amount string
		tier          string
	)
	if err := row.Scan(&ev.ID, &ev.AccountID, &token, &amount, &tier, &ev.ReferralBonus, &ev.IdempotencyKey, &ev.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	ev.Token = domain.Token(token)
	ev.Amount = d
	ev.Tier = domain.Tier(tier)
	return &ev, nil
}

// ListClaimEvents returns the newest events first
func (r *MiningRepository) ListClaimEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.ClaimEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM claim_events
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, classify("list claim events", err)
	}
	defer rows.Close()

	var out []domain.ClaimEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, classify("scan claim event", err)
		}
		out = append(out, *ev)
	}
	return out, classify("list claim events", rows.Err())
}

func (r *MiningRepository) CountClaimsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM claim_events
		 WHERE NOT referral_bonus AND token = $1 AND created_at >= $2`,
		string(domain.PrimaryToken), since,
	).Scan(&n)
	return n, classify("count claims", err)
}
