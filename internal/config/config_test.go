package config

import (
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(env(map[string]string{
		"JWT_SECRET":   "secret",
		"DATABASE_URL": "postgres://localhost/teos",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.AppPort != "8080" || cfg.StoreDriver != StoreDriverPostgres || cfg.EventBus != EventBusMemory {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.TierSweepInterval != time.Hour || cfg.ClaimRateLimit != 5 || cfg.ClaimRateWindow != time.Minute {
		t.Fatalf("unexpected numeric defaults %+v", cfg)
	}
	if cfg.WalletSolana == "" || cfg.WalletPi == "" {
		t.Fatalf("expected default wallets")
	}
}

func TestParseRequiredValues(t *testing.T) {
	cases := []map[string]string{
		{"DATABASE_URL": "postgres://x"},
		{"JWT_SECRET": "s"},
		{"JWT_SECRET": "s", "STORE_DRIVER": "sqlite"},
		{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "EVENT_BUS": "redis"},
		{"JWT_SECRET": "s", "STORE_DRIVER": "memory", "ADMIN_BOT_ENABLED": "true"},
	}
	for i, c := range cases {
		if _, err := Parse(env(c)); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(env(map[string]string{
		"JWT_SECRET":                  "s",
		"STORE_DRIVER":                "MEMORY",
		"ADMIN_TELEGRAM_IDS":          "1, 2,bad,3",
		"TIER_SWEEP_INTERVAL_SECONDS": "30",
		"API_RATE_LIMIT":              "-4",
		"PUBLIC_BASE_URL":             "https://teos.example/",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.AdminTelegramIDs) != 3 || cfg.AdminTelegramIDs[2] != 3 {
		t.Fatalf("unexpected admin ids %v", cfg.AdminTelegramIDs)
	}
	if cfg.TierSweepInterval != 30*time.Second {
		t.Fatalf("expected 30s sweep, got %s", cfg.TierSweepInterval)
	}
	if cfg.APIRateLimit != 120 {
		t.Fatalf("negative limit must fall back to default, got %d", cfg.APIRateLimit)
	}
	if cfg.PublicBaseURL != "https://teos.example" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
}
