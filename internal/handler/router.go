package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// healthCheckTimeout bounds each dependency probe in /healthz.
const healthCheckTimeout = 2 * time.Second

// Deps carries the services behind the HTTP API.
type Deps struct {
	Insights      *service.InsightService
	Subscriptions *service.SubscriptionService
	Budget        *service.BudgetService
	Advisor       *service.AdvisorService

	// Health maps a dependency name to its probe for /healthz.
	Health map[string]port.HealthChecker

	// JWTSecret enables bearer authentication on /v1/users when set.
	JWTSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Health, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/insight", insightMetricsHandler(metrics))

		r.Route("/users/{userId}", func(r chi.Router) {
			if deps.JWTSecret != "" {
				r.Use(JWTAuthMiddleware([]byte(deps.JWTSecret), logger))
				r.Use(RequireSelf(logger))
			}

			// Insights
			r.Get("/dashboard", dashboardHandler(deps.Insights, logger))
			r.Get("/wellness", wellnessHandler(deps.Insights, logger))
			r.Get("/action-plan", actionPlanHandler(deps.Insights, logger))
			r.Get("/affordability", affordabilityHandler(deps.Insights, logger))

			// Subscriptions
			r.Get("/subscriptions/review", subscriptionReviewHandler(deps.Insights, logger))
			r.Post("/subscriptions/cancel-suggested", cancelSuggestedHandler(deps.Subscriptions, logger))
			r.Post("/subscriptions/{subscriptionId}/cancel", cancelSubscriptionHandler(deps.Subscriptions, logger))

			// Transactions
			r.Post("/transactions", recordTransactionHandler(deps.Budget, logger))

			// Advisor
			r.Post("/advisor/chat", advisorChatHandler(deps.Advisor, logger))
		})
	})

	return r
}

// ============================================================
// Health & Metrics
// ============================================================

func healthzHandler(checks map[string]port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: domain.HealthHealthy, LastChecked: now},
		}
		overall := domain.HealthHealthy

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			start := time.Now()
			err := checks[name].Ping(ctx)
			cancel()

			s := domain.ServiceHealth{
				Name:        name,
				Status:      domain.HealthHealthy,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				logger.Warn("health check failed", zap.String("service", name), zap.Error(err))
				s.Status = domain.HealthDegraded
				s.Error = err.Error()
				overall = domain.HealthDegraded
			}
			services = append(services, s)
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func insightMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
