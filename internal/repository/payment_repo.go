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

const paymentColumns = `id, account_id, tier, amount::text, currency, transaction_ref, wallet_address, status, submitted_at, verified_at`

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p                    domain.Payment
		tier, amount, status string
	)
	if err := row.Scan(&p.ID, &p.AccountID, &tier, &amount, &p.Currency, &p.TransactionRef,
		&p.WalletAddress, &status, &p.SubmittedAt, &p.VerifiedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	p.Tier = domain.Tier(tier)
	p.Amount = d
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, account_id, tier, amount, currency, transaction_ref, wallet_address, status, submitted_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)`,
		p.ID, p.AccountID, string(p.Tier), p.Amount.String(), p.Currency, p.TransactionRef,
		p.WalletAddress, string(p.Status), p.SubmittedAt,
	)
	if isUniqueViolation(err, "payments_transaction_ref_key") {
		return store.ErrDuplicateTransaction
	}
	return classify("create payment", err)
}

func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get payment", err)
	}
	return p, nil
}

func (r *PaymentRepository) queryPayments(ctx context.Context, op, sql string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, *p)
	}
	return out, classify(op, rows.Err())
}

// ListPayments returns an account's payment history, newest first
func (r *PaymentRepository) ListPayments(ctx context.Context, accountID uuid.UUID) ([]domain.Payment, error) {
	return r.queryPayments(ctx, "list payments",
		`SELECT `+paymentColumns+` FROM payments WHERE account_id = $1 ORDER BY submitted_at DESC`,
		accountID)
}

// ListPendingPayments returns the verification queue, oldest first
func (r *PaymentRepository) ListPendingPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryPayments(ctx, "list pending payments",
		`SELECT `+paymentColumns+` FROM payments WHERE status = 'pending' ORDER BY submitted_at ASC LIMIT $1`,
		limit)
}

// ConfirmPayment confirms a pending payment and advances the tier in one
// transaction. The payment stays pending when the tier would not rise.
func (r *PaymentRepository) ConfirmPayment(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Payment, *domain.Account, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, classify("begin confirm payment", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, nil, classify("lock payment", err)
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, nil, store.ErrPaymentProcessed
	}

	acc, err := scanAccount(tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, p.AccountID))
	if err != nil {
		return nil, nil, classify("lock account", err)
	}
	if !p.Tier.Above(acc.EffectiveTier(now)) {
		return nil, nil, store.ErrTierNotHigher
	}

	acc, err = scanAccount(tx.QueryRow(ctx,
		`UPDATE accounts
		 SET tier = $2, tier_upgraded_at = $3, tier_expires_at = $4, updated_at = $3
		 WHERE id = $1
		 RETURNING `+accountColumns,
		p.AccountID, string(p.Tier), now, now.Add(domain.TierDuration),
	))
	if err != nil {
		return nil, nil, classify("advance tier", err)
	}

	p, err = scanPayment(tx.QueryRow(ctx,
		`UPDATE payments SET status = 'confirmed', verified_at = $2
		 WHERE id = $1
		 RETURNING `+paymentColumns,
		id, now,
	))
	if err != nil {
		return nil, nil, classify("confirm payment", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, classify("commit confirm payment", err)
	}
	return p, acc, nil
}

func (r *PaymentRepository) RejectPayment(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`UPDATE payments SET status = 'failed', verified_at = $2
		 WHERE id = $1 AND status = 'pending'
		 RETURNING `+paymentColumns,
		id, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetPayment(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrPaymentProcessed
	}
	if err != nil {
		return nil, classify("reject payment", err)
	}
	return p, nil
}
