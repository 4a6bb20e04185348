package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 || cfg.StoreBackend != BackendMemory {
		t.Errorf("unexpected defaults: port=%d backend=%s", cfg.Port, cfg.StoreBackend)
	}
	if cfg.ReconcileCron != "0 3 * * *" || cfg.InsightWindow != "month" {
		t.Errorf("unexpected job/window defaults: %q %q", cfg.ReconcileCron, cfg.InsightWindow)
	}
	if cfg.SubscriptionWastePenalty || !cfg.MonthlyBudgetLimit.IsZero() {
		t.Error("expected penalty off and no default budget limit")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/insight")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("SUBSCRIPTION_WASTE_PENALTY", "true")
	t.Setenv("MONTHLY_BUDGET_LIMIT", "1250.50")
	t.Setenv("MEMO_MAX_ENTRIES", "42")

	cfg := Load()

	if cfg.Port != 9090 || cfg.StoreBackend != BackendPostgres || cfg.CacheTTL != 30*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.SubscriptionWastePenalty || !cfg.MonthlyBudgetLimit.Equal(decimal.RequireFromString("1250.5")) {
		t.Errorf("unexpected engine settings: %v %s", cfg.SubscriptionWastePenalty, cfg.MonthlyBudgetLimit)
	}
	if cfg.MemoMaxEntries != 42 {
		t.Errorf("expected 42 memo entries, got %d", cfg.MemoMaxEntries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("HTTP_TIMEOUT", "soon")
	t.Setenv("MONTHLY_BUDGET_LIMIT", "lots")
	t.Setenv("SUBSCRIPTION_WASTE_PENALTY", "maybe")

	cfg := Load()

	if cfg.Port != 8080 || cfg.HTTPTimeout != 10*time.Second || !cfg.MonthlyBudgetLimit.IsZero() || cfg.SubscriptionWastePenalty {
		t.Errorf("expected fallbacks, got %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"supabase without url":  func(c *Config) { c.StoreBackend = BackendSupabase },
		"postgres without dsn":  func(c *Config) { c.StoreBackend = BackendPostgres },
		"unknown backend":       func(c *Config) { c.StoreBackend = "mongo" },
		"zero concurrency":      func(c *Config) { c.MaxConcurrency = 0 },
		"negative budget limit": func(c *Config) { c.MonthlyBudgetLimit = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Load()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# local overrides\nOLLAMA_MODEL=\"mistral:7b\"\nLOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OLLAMA_MODEL", "")
	os.Unsetenv("OLLAMA_MODEL")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("OLLAMA_MODEL") })

	cfg := Load()
	if cfg.OllamaModel != "mistral:7b" {
		t.Errorf("expected model from .env, got %q", cfg.OllamaModel)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("environment must win over .env, got %q", cfg.LogLevel)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing file must be ignored, got %v", err)
	}
}
