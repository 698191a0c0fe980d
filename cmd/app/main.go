package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"teos_mining/internal/app"
	"teos_mining/internal/bot"
	"teos_mining/internal/config"
	"teos_mining/internal/db"
	"teos_mining/internal/events"
	httpServer "teos_mining/internal/http"
	"teos_mining/internal/http/handlers"
	"teos_mining/internal/http/middleware"
	"teos_mining/internal/logger"
	"teos_mining/internal/repository"
	"teos_mining/internal/service"
	"teos_mining/internal/store"
	"teos_mining/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		st = memstore.New()
	default:
		pool := db.Connect(ctx, cfg.DatabaseURL, cfg.AutoMigrate)
		st = repository.NewStore(pool)
	}
	defer st.Close()

	var (
		rdb     *redis.Client
		revoker service.Revoker
		bus     events.Bus = events.NewMemoryBus()
		checks             = map[string]handlers.Pinger{}
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		}
		middleware.UseRedis(rdb)
		revoker = service.NewRedisRevoker(rdb)
		checks["redis"] = redisPinger{client: rdb}
		if cfg.EventBus == config.EventBusRedis {
			bus = events.NewRedisBus(rdb, "")
		}
	}
	logger.Info("event bus selected", "bus", cfg.EventBus)

	a := app.New(app.Deps{
		Store:             st,
		Bus:               bus,
		Revoker:           revoker,
		JWTSecret:         cfg.JWTSecret,
		PublicBaseURL:     cfg.PublicBaseURL,
		Wallets:           service.Wallets{Solana: cfg.WalletSolana, Pi: cfg.WalletPi},
		TierSweepInterval: cfg.TierSweepInterval,
	})
	a.Start(ctx)

	if cfg.AdminBotEnabled {
		adminBot, err := bot.NewAdminBot(cfg.BotToken, a.Tiers, a.Admin, a.Referrals, a.Audit, cfg.AdminTelegramIDs)
		if err != nil {
			logger.Error("admin bot disabled", "error", err)
		} else {
			a.Tiers.SetNotifier(adminBot)
			go adminBot.Start()
			defer adminBot.Stop()
		}
	}

	r := gin.Default()
	httpServer.RegisterRoutes(r, a.Handler, handlers.NewHealthHandler(st, version, checks), a.Hub,
		httpServer.OptionsFromConfig(cfg, version))

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	a.Stop()

	logger.Info("server exited")
}
