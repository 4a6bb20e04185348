package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/config"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/handler"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/cache"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/llm"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memo"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/notify"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/postgres"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/scheduler"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"go.uber.org/zap"
)

// reconcileTimeout bounds one run of the monthly-total reconciliation job.
const reconcileTimeout = 10 * time.Minute

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("advisor_provider", cfg.AdvisorProvider),
		zap.String("insight_window", cfg.InsightWindow),
		zap.Bool("subscription_waste_penalty", cfg.SubscriptionWastePenalty),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "pocketadvisor-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Store ---
	store, health, closeStore, err := openStore(cfg, httpClient, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// --- Caches ---
	snapshots := cache.New[*domain.Snapshot](cfg.CacheTTL)
	defer snapshots.Close()

	reports, err := memo.New[*domain.InsightReport](cfg.MemoMaxEntries)
	if err != nil {
		logger.Fatal("failed to create report memo", zap.Error(err))
	}
	defer reports.Close()

	// --- Advisor ---
	advisor, err := llm.New(llm.Config{
		Provider:        cfg.AdvisorProvider,
		OllamaBaseURL:   cfg.OllamaBaseURL,
		OllamaModel:     cfg.OllamaModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
	}, httpClient, resilience.NewCircuitBreaker("advisor"), resilienceCfg)
	if err != nil {
		logger.Fatal("failed to configure advisor", zap.Error(err))
	}

	// --- Notifier ---
	var notifier port.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     strconv.Itoa(cfg.SMTPPort),
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Sender:   cfg.SMTPSender,
		}, logger)
		logger.Info("budget alerts delivered by email", zap.String("smtp_host", cfg.SMTPHost))
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Warn("SMTP not configured, budget alerts are only logged")
	}

	// --- Services ---
	window, err := service.ParseWindowMode(cfg.InsightWindow)
	if err != nil {
		logger.Fatal("invalid INSIGHT_WINDOW", zap.Error(err))
	}
	engine := insight.NewEngine(insight.Options{SubscriptionWastePenalty: cfg.SubscriptionWastePenalty})

	insightSvc := service.NewInsightService(store, engine, snapshots, reports, window, metrics, logger)
	subscriptionSvc := service.NewSubscriptionService(store, insightSvc, logger)
	budgetSvc := service.NewBudgetService(store, notifier, insightSvc, cfg.MonthlyBudgetLimit, metrics, logger)
	advisorSvc := service.NewAdvisorService(advisor, insightSvc, cfg.MaxConcurrency, metrics, logger)

	// --- Jobs ---
	jobs := scheduler.New(logger, reconcileTimeout)
	err = jobs.Add("reconcile-monthly-totals", cfg.ReconcileCron, func(ctx context.Context) error {
		n, err := budgetSvc.Reconcile(ctx)
		logger.Info("monthly totals reconciled", zap.Int("users", n))
		return err
	})
	if err != nil {
		logger.Fatal("failed to schedule reconciliation", zap.Error(err))
	}
	jobs.Start()

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Insights:      insightSvc,
		Subscriptions: subscriptionSvc,
		Budget:        budgetSvc,
		Advisor:       advisorSvc,
		Health:        map[string]port.HealthChecker{cfg.StoreBackend: health},
		JWTSecret:     cfg.JWTSecret,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if err := jobs.Stop(ctx); err != nil {
		logger.Warn("background jobs did not stop in time", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStore builds the configured finance store, its health probe and a
// close function.
func openStore(cfg *config.Config, httpClient *http.Client, rcfg resilience.Config, logger *zap.Logger) (port.FinanceStore, port.HealthChecker, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			rcfg,
			logger,
		)
		return client, client, noop, nil

	case config.BackendPostgres:
		logger.Info("using PostgreSQL as data backend")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, err
		}
		store := postgres.NewStore(db, resilience.NewCircuitBreaker("postgres"), rcfg, logger)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, noop, err
		}
		return store, store, func() { db.Close() }, nil

	default:
		logger.Info("using in-memory data backend", zap.String("seed_file", cfg.SeedFile))
		store, err := memstore.LoadFile(cfg.SeedFile)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, nil, noop, err
			}
			logger.Warn("seed file not found, starting empty", zap.String("seed_file", cfg.SeedFile))
			store = memstore.New()
		}
		return store, store, noop, nil
	}
}
