package worker

import (
	"context"
	"time"

	"teos_mining/internal/logger"

	"github.com/google/uuid"
)

const DefaultSweepInterval = time.Hour

// TierSweeper is anything that can reset expired paid tiers
type TierSweeper interface {
	SweepExpiredTiers(ctx context.Context) ([]uuid.UUID, error)
}

// Sweeper periodically resets tiers whose 30 day window has passed
type Sweeper struct {
	tiers    TierSweeper
	interval time.Duration
}

func NewSweeper(tiers TierSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{tiers: tiers, interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	logger.Info("tier sweeper started", "interval", s.interval.String())

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("tier sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	ids, err := s.tiers.SweepExpiredTiers(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("tier sweep failed", "error", err)
		}
		return
	}
	if len(ids) > 0 {
		logger.Debug("tier sweep cycle", "reset", len(ids))
	}
}
