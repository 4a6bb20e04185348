package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrEvaluation("dashboard")
	m.IncrEvaluation("wellness")
	m.IncrCacheHit(observability.CacheMemo)
	m.IncrCacheMiss(observability.CacheMemo)
	m.IncrCacheMiss(observability.CacheMemo)
	m.IncrCacheMiss(observability.CacheMemo)
	m.IncrExternalError("store")
	m.RecordTokens(120, 30)
	m.IncrBudgetAlert("sent")
	m.IncrBudgetAlert("failed")
	m.ObserveWellnessScore(85)

	snap := m.Snapshot()

	if snap.Evaluations != 2 {
		t.Errorf("expected 2 evaluations, got %d", snap.Evaluations)
	}
	if snap.MemoHitRate != 0.25 {
		t.Errorf("expected memo hit rate 0.25, got %f", snap.MemoHitRate)
	}
	if snap.SnapshotHitRate != 0 {
		t.Errorf("expected snapshot hit rate 0, got %f", snap.SnapshotHitRate)
	}
	if snap.ExternalErrors != 1 {
		t.Errorf("expected 1 external error, got %d", snap.ExternalErrors)
	}
	if snap.PromptTokens != 120 || snap.CompletionTokens != 30 {
		t.Errorf("unexpected tokens %d/%d", snap.PromptTokens, snap.CompletionTokens)
	}
	if snap.BudgetAlerts != 1 {
		t.Errorf("expected 1 sent alert, got %d", snap.BudgetAlerts)
	}
}

func TestNewMetrics_Twice(t *testing.T) {
	observability.NewMetrics()
	observability.NewMetrics()
}

func TestNewLogger_Levels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error", "bogus"} {
		if observability.NewLogger(lvl) == nil {
			t.Errorf("expected logger for level %q", lvl)
		}
	}
}

func TestZapLoggerMiddleware_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Get("/v1/users/{userId}/wellness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/u-9/wellness", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("expected warn for 404, got %s", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["user_id"] != "u-9" {
		t.Errorf("expected user_id field, got %v", fields["user_id"])
	}
	if fields["route"] != "/v1/users/{userId}/wellness" {
		t.Errorf("expected route pattern, got %v", fields["route"])
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := observability.InitTracer("", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}
