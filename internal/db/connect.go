package db

import (
	"context"
	"time"

	"teos_mining/internal/logger"
	"teos_mining/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConns        = 20
	maxConnIdleTime = 5 * time.Minute
)

// Connect opens the pool and stops the process if postgres is unreachable.
// With migrate set, the embedded schema is applied before returning.
func Connect(ctx context.Context, dsn string, migrate bool) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", "error", err)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnIdleTime = maxConnIdleTime

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	if err := db.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}
	logger.Info("database connected")

	if migrate {
		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			logger.Fatal("failed to apply migrations", "error", err)
		}
		logger.Info("migrations applied", "files", applied)
	}
	return db
}
