package worker

import (
	"context"
	"errors"
	"time"

	"teos_mining/internal/domain"
	"teos_mining/internal/events"
	"teos_mining/internal/logger"
)

const AccrualGroup = "referral-accrual"

// ClaimEventHandler applies the referral bonus for one claim event
type ClaimEventHandler interface {
	HandleClaimEvent(ctx context.Context, ev domain.ClaimEvent) error
}

// Accrual consumes claim events and credits referrers. The claim service
// also accrues in-process, so every event may be handled twice.
type Accrual struct {
	bus     events.Bus
	handler ClaimEventHandler
	backoff time.Duration
}

func NewAccrual(bus events.Bus, handler ClaimEventHandler) *Accrual {
	return &Accrual{bus: bus, handler: handler, backoff: 2 * time.Second}
}

// Run subscribes until ctx is done or the bus is closed, resubscribing
// after transport errors.
func (a *Accrual) Run(ctx context.Context) {
	logger.Info("referral accrual consumer started", "group", AccrualGroup)
	for {
		err := a.bus.Subscribe(ctx, AccrualGroup, a.handle)
		switch {
		case err == nil, errors.Is(err, events.ErrClosed):
			logger.Info("referral accrual consumer stopped")
			return
		case ctx.Err() != nil:
			logger.Info("referral accrual consumer stopped")
			return
		}
		logger.Warn("accrual subscription failed, retrying", "error", err, "backoff", a.backoff.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.backoff):
		}
	}
}

func (a *Accrual) handle(ctx context.Context, ev domain.ClaimEvent) error {
	if ev.Token != domain.PrimaryToken || ev.ReferralBonus {
		return nil
	}
	return a.handler.HandleClaimEvent(ctx, ev)
}
