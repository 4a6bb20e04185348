package observability

import (
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Cache labels used with IncrCacheHit / IncrCacheMiss.
const (
	CacheSnapshot = "snapshot"
	CacheMemo     = "memo"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	evaluations     *prometheus.CounterVec
	wellnessScores  prometheus.Histogram
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	budgetAlerts    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_insight_evaluations_total",
				Help: "Total insight engine evaluations by operation.",
			},
			[]string{"operation"},
		),
		wellnessScores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bfa_wellness_score",
				Help:    "Distribution of computed wellness scores.",
				Buckets: []float64{20, 40, 60, 80, 100},
			},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		budgetAlerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_budget_alerts_total",
				Help: "Budget alerts by delivery outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrEvaluation counts one engine run.
func (m *Metrics) IncrEvaluation(operation string) {
	m.evaluations.WithLabelValues(operation).Inc()
}

// ObserveWellnessScore records a computed score.
func (m *Metrics) ObserveWellnessScore(score int) {
	m.wellnessScores.Observe(float64(score))
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrBudgetAlert counts a budget alert with its delivery status ("sent" or "failed").
func (m *Metrics) IncrBudgetAlert(status string) {
	m.budgetAlerts.WithLabelValues(status).Inc()
}

// Snapshot returns the counters behind GET /v1/metrics/insight.
// Prometheus counters are cumulative, so rates are all-time.
func (m *Metrics) Snapshot() *domain.InsightMetrics {
	evaluations := float64(0)
	for _, op := range []string{"dashboard", "wellness", "action_plan", "affordability", "subscriptions"} {
		evaluations += getCounterValue(m.evaluations, op)
	}

	externalErrors := float64(0)
	for _, svc := range []string{"store", "advisor", "notifier"} {
		externalErrors += getCounterValue(m.externalErrors, svc)
	}

	return &domain.InsightMetrics{
		Evaluations:      int64(evaluations),
		MemoHitRate:      m.hitRate(CacheMemo),
		SnapshotHitRate:  m.hitRate(CacheSnapshot),
		ExternalErrors:   int64(externalErrors),
		PromptTokens:     int64(getCounterValue(m.tokensUsed, "prompt")),
		CompletionTokens: int64(getCounterValue(m.tokensUsed, "completion")),
		BudgetAlerts:     int64(getCounterValue(m.budgetAlerts, "sent")),
	}
}

func (m *Metrics) hitRate(cache string) float64 {
	hits := getCounterValue(m.cacheHits, cache)
	misses := getCounterValue(m.cacheMisses, cache)
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
