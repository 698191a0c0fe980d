// Package app builds the service graph shared by the server binary and
// the end-to-end tests.
package app

import (
	"context"
	"sync"
	"time"

	"teos_mining/internal/events"
	"teos_mining/internal/http/handlers"
	"teos_mining/internal/logger"
	"teos_mining/internal/service"
	"teos_mining/internal/store"
	"teos_mining/internal/worker"
	"teos_mining/internal/ws"
)

type Deps struct {
	Store             store.Store
	Bus               events.Bus
	Revoker           service.Revoker
	JWTSecret         string
	PublicBaseURL     string
	Wallets           service.Wallets
	TierSweepInterval time.Duration
}

type App struct {
	Identity  *service.IdentityService
	Accounts  *service.AccountService
	Claims    *service.ClaimService
	Referrals *service.ReferralService
	Tiers     *service.TierService
	Admin     *service.AdminService
	Audit     *service.AuditService

	Handler *handlers.Handler
	Hub     *ws.Hub

	sweeper *worker.Sweeper
	accrual *worker.Accrual
	bus     events.Bus
	wg      sync.WaitGroup
}

func New(d Deps) *App {
	revoker := d.Revoker
	if revoker == nil {
		revoker = service.NewMemoryRevoker()
	}

	a := &App{bus: d.Bus}
	a.Audit = service.NewAuditService(d.Store)
	a.Identity = service.NewIdentityService(d.Store, service.NewTokenManager(d.JWTSecret, revoker), a.Audit)
	a.Referrals = service.NewReferralService(d.Store, d.Bus, a.Audit, d.PublicBaseURL)
	a.Accounts = service.NewAccountService(d.Store, a.Referrals, a.Audit)
	a.Claims = service.NewClaimService(d.Store, a.Accounts, a.Referrals, d.Bus, a.Audit)
	a.Tiers = service.NewTierService(d.Store, a.Audit, d.Wallets)
	a.Admin = service.NewAdminService(d.Store)

	a.Identity.OnSessionChange(a.Accounts.HandleSessionEvent)

	a.Handler = &handlers.Handler{
		Identity:  a.Identity,
		Accounts:  a.Accounts,
		Claims:    a.Claims,
		Referrals: a.Referrals,
		Tiers:     a.Tiers,
		Admin:     a.Admin,
		Audit:     a.Audit,
	}
	a.Hub = ws.NewHub(d.Bus, "")
	a.sweeper = worker.NewSweeper(a.Tiers, d.TierSweepInterval)
	a.accrual = worker.NewAccrual(d.Bus, a.Referrals)
	return a
}

// Start launches the hub and background workers. They stop when ctx is
// cancelled or the bus closes.
func (a *App) Start(ctx context.Context) {
	for _, run := range []func(context.Context){a.Hub.Run, a.sweeper.Run, a.accrual.Run} {
		a.wg.Add(1)
		go func(run func(context.Context)) {
			defer a.wg.Done()
			run(ctx)
		}(run)
	}
	logger.Info("background workers started")
}

// Stop closes the bus and waits for the workers started by Start
func (a *App) Stop() {
	if err := a.bus.Close(); err != nil {
		logger.Warn("event bus close failed", "error", err)
	}
	a.wg.Wait()
	logger.Info("background workers stopped")
}
