package http

import (
	"time"

	"teos_mining/internal/config"
	"teos_mining/internal/http/handlers"
	"teos_mining/internal/http/middleware"
	"teos_mining/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the route level settings taken from config
type Options struct {
	Version       string
	AllowedOrigin string
	AdminAPIToken string
	StaticDir     string

	APIRateLimit    int
	APIRateWindow   time.Duration
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	ClaimRateLimit  int
	ClaimRateWindow time.Duration
}

func OptionsFromConfig(cfg *config.Config, version string) Options {
	return Options{
		Version:         version,
		AllowedOrigin:   cfg.AllowedOrigin,
		AdminAPIToken:   cfg.AdminAPIToken,
		APIRateLimit:    cfg.APIRateLimit,
		APIRateWindow:   cfg.APIRateWindow,
		AuthRateLimit:   cfg.AuthRateLimit,
		AuthRateWindow:  cfg.AuthRateWindow,
		ClaimRateLimit:  cfg.ClaimRateLimit,
		ClaimRateWindow: cfg.ClaimRateWindow,
	}
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, opts Options) {
	r.Use(middleware.RequestID(), middleware.Metrics(), middleware.CORS(opts.AllowedOrigin))

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit("api", opts.APIRateLimit, opts.APIRateWindow))
	registerAPIRoutes(v1, h, opts)

	// Legacy /api routes kept for older clients
	api := r.Group("/api")
	api.Use(middleware.RateLimit("api_legacy", opts.APIRateLimit, opts.APIRateWindow))
	api.GET("/health", health.Health)
	registerAPIRoutes(api, h, opts)

	// WebSocket push of claim and referral bonus events
	r.GET("/ws", ws.HandleWS(hub, h.Identity, opts.AllowedOrigin))

	if opts.StaticDir != "" {
		r.StaticFS("/assets", gin.Dir(opts.StaticDir, false))
		r.NoRoute(func(c *gin.Context) {
			c.File(opts.StaticDir + "/index.html")
		})
	}
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, opts Options) {
	auth := middleware.JWT(h.Identity)
	authRL := middleware.RateLimit("auth", opts.AuthRateLimit, opts.AuthRateWindow)

	// Auth
	api.POST("/auth/signup", authRL, h.SignUp)
	api.POST("/auth/signin", authRL, h.SignIn)
	api.POST("/auth/signout", auth, h.SignOut)

	// Account
	api.GET("/me", auth, h.Me)
	api.GET("/me/audit", auth, h.AuditLog)
	api.POST("/verification/:step", auth, h.RecordVerificationStep)

	// Mining
	mining := api.Group("/mining")
	{
		mining.GET("/rewards", h.Rewards)
		mining.GET("/status", auth, h.MiningStatus)
		mining.POST("/claim", auth, middleware.ClaimRateLimit(opts.ClaimRateLimit, opts.ClaimRateWindow), h.Claim)
		mining.GET("/history", auth, h.MiningHistory)
	}

	// Referral system
	api.GET("/referral/leaderboard", h.GetReferralLeaderboard)
	referral := api.Group("/referral")
	referral.Use(auth)
	{
		referral.GET("/code", h.GetReferralCode)
		referral.GET("/link", h.GetReferralLink)
		referral.GET("/stats", h.GetReferralStats)
		referral.GET("/report", h.GetReferralReport)
		referral.POST("/apply", h.ApplyReferralCode)
	}

	// Tier upgrades
	upgrade := api.Group("/upgrade")
	upgrade.Use(auth)
	{
		upgrade.GET("/info", h.GetUpgradeInfo)
		upgrade.GET("/payments", h.GetPayments)
		upgrade.POST("/payments", h.SubmitPayment)
	}

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.AdminToken(opts.AdminAPIToken))
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/accounts/:identifier", h.AdminAccount)
		admin.GET("/payments/pending", h.AdminPendingPayments)
		admin.POST("/payments/:id/confirm", h.AdminConfirmPayment)
		admin.POST("/payments/:id/reject", h.AdminRejectPayment)
		admin.POST("/tiers/sweep", h.AdminSweepTiers)
	}
}
