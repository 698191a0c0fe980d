package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"teos_mining/internal/logger"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	EventBusMemory = "memory"
	EventBusRedis  = "redis"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	AutoMigrate   bool
	StoreDriver   string
	JWTSecret     string
	PublicBaseURL string
	AllowedOrigin string
	AdminAPIToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventBus      string

	BotToken         string
	AdminTelegramIDs []int64
	AdminBotEnabled  bool

	TierSweepInterval time.Duration

	APIRateLimit    int
	APIRateWindow   time.Duration
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	ClaimRateLimit  int
	ClaimRateWindow time.Duration

	WalletSolana string
	WalletPi     string

	LogLevel string
	LogJSON  bool
}

// Load reads .env (if any) and the environment. Missing required values
// stop the process.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// Parse builds a Config from a lookup function such as os.Getenv
func Parse(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppPort:       orDefault(getenv("APP_PORT"), "8080"),
		DatabaseURL:   getenv("DATABASE_URL"),
		AutoMigrate:   getenv("AUTO_MIGRATE") == "true",
		StoreDriver:   strings.ToLower(orDefault(getenv("STORE_DRIVER"), StoreDriverPostgres)),
		JWTSecret:     getenv("JWT_SECRET"),
		PublicBaseURL: strings.TrimRight(orDefault(getenv("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),
		AllowedOrigin: getenv("ALLOWED_ORIGIN"),
		AdminAPIToken: getenv("ADMIN_API_TOKEN"),

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		EventBus:      strings.ToLower(orDefault(getenv("EVENT_BUS"), EventBusMemory)),

		BotToken:        getenv("BOT_TOKEN"),
		AdminBotEnabled: getenv("ADMIN_BOT_ENABLED") == "true",

		WalletSolana: orDefault(getenv("WALLET_SOLANA"), "F1YLmukcxAyZj6zVpi2XaVctmYnuZQB5uHpd3uUpXxr6"),
		WalletPi:     orDefault(getenv("WALLET_PI"), "GDIW2DXDR3DU4CYTRHDS3WYDGHMUQZG7E5FJWWW6XSADOC5VHMYRYD6F"),

		LogLevel: orDefault(getenv("LOG_LEVEL"), "info"),
		LogJSON:  getenv("LOG_JSON") == "true",
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.EventBus {
	case EventBusMemory:
	case EventBusRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("EVENT_BUS=redis requires REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unknown EVENT_BUS %q", cfg.EventBus)
	}

	if cfg.AdminBotEnabled && cfg.BotToken == "" {
		return nil, errors.New("ADMIN_BOT_ENABLED requires BOT_TOKEN")
	}

	// comma separated telegram ids
	if v := getenv("ADMIN_TELEGRAM_IDS"); v != "" {
		for _, idStr := range strings.Split(v, ",") {
			idStr = strings.TrimSpace(idStr)
			if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
				cfg.AdminTelegramIDs = append(cfg.AdminTelegramIDs, id)
			}
		}
	}

	cfg.RedisDB = positiveInt(getenv("REDIS_DB"), 0)
	cfg.TierSweepInterval = seconds(getenv("TIER_SWEEP_INTERVAL_SECONDS"), 3600)

	cfg.APIRateLimit = positiveInt(getenv("API_RATE_LIMIT"), 120)
	cfg.APIRateWindow = seconds(getenv("API_RATE_WINDOW_SECONDS"), 60)
	cfg.AuthRateLimit = positiveInt(getenv("AUTH_RATE_LIMIT"), 10)
	cfg.AuthRateWindow = seconds(getenv("AUTH_RATE_WINDOW_SECONDS"), 60)
	cfg.ClaimRateLimit = positiveInt(getenv("CLAIM_RATE_LIMIT"), 5)
	cfg.ClaimRateWindow = seconds(getenv("CLAIM_RATE_WINDOW_SECONDS"), 60)

	return cfg, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func positiveInt(v string, def int) int {
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

func seconds(v string, def int) time.Duration {
	return time.Duration(positiveInt(v, def)) * time.Second
}
