package repository

import (
	"context"

	"teos_mining/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ store.Store = (*Store)(nil)

// Store is the Postgres backend, one repository per table group
type Store struct {
	*AccountRepository
	*MiningRepository
	*ReferralRepository
	*PaymentRepository
	*IdentityRepository
	*AuditRepository

	pool *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		AccountRepository:  NewAccountRepository(db),
		MiningRepository:   NewMiningRepository(db),
		ReferralRepository: NewReferralRepository(db),
		PaymentRepository:  NewPaymentRepository(db),
		IdentityRepository: NewIdentityRepository(db),
		AuditRepository:    NewAuditRepository(db),
		pool:               db,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}
