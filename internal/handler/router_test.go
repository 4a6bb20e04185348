package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/handler"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/cache"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/notify"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/insight"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/port"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const seed = `{
	"users": [
		{"user_id": "u-1", "email": "ana@example.com", "monthly_income": 4000, "essential_expenses": 1500, "monthly_budget": 1000},
		{"user_id": "u-2", "monthly_income": 0}
	],
	"transactions": [
		{"id": "t1", "user_id": "u-1", "amount": 4000, "category": "salary", "occurred_at": "2025-01-01T08:00:00Z"},
		{"id": "t2", "user_id": "u-1", "amount": -500, "category": "groceries", "occurred_at": "2025-01-03T10:00:00Z"},
		{"id": "t3", "user_id": "u-1", "amount": -300, "category": "dining", "occurred_at": "2025-01-10T10:00:00Z"}
	],
	"subscriptions": [
		{"id": "s1", "user_id": "u-1", "merchant": "StreamMax", "monthly_amount": 32.99, "days_used": 2},
		{"id": "s2", "user_id": "u-1", "merchant": "Gym", "monthly_amount": 25, "days_used": 10}
	],
	"accounts": [
		{"id": "a1", "user_id": "u-1", "name": "Checking", "kind": "checking", "balance": 1500}
	]
}`

type stubAdvisor struct {
	reply string
	err   error
}

func (s *stubAdvisor) Name() string { return "stub" }

func (s *stubAdvisor) Complete(context.Context, *domain.AdvisorRequest) (*domain.AdvisorResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.AdvisorResponse{Reply: s.reply, Model: "stub-1"}, nil
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("connection refused") }

func newTestRouter(t *testing.T, secret string, adv port.Advisor) http.Handler {
	t.Helper()
	store, err := memstore.Load(strings.NewReader(seed))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	snapshots := cache.New[*domain.Snapshot](time.Minute)
	reports := cache.New[*domain.InsightReport](time.Hour)
	t.Cleanup(snapshots.Close)
	t.Cleanup(reports.Close)

	insights := service.NewInsightService(store, insight.NewEngine(insight.Options{}), snapshots, reports, service.WindowAll, metrics, logger)
	if adv == nil {
		adv = &stubAdvisor{reply: "Cancel StreamMax."}
	}

	return handler.NewRouter(handler.Deps{
		Insights:      insights,
		Subscriptions: service.NewSubscriptionService(store, insights, logger),
		Budget:        service.NewBudgetService(store, notify.NewLogNotifier(logger), insights, decimal.Zero, metrics, logger),
		Advisor:       service.NewAdvisorService(adv, insights, 2, metrics, logger),
		Health:        map[string]port.HealthChecker{"store": store},
		JWTSecret:     secret,
	}, metrics, logger)
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func token(t *testing.T, secret, subject string, method jwt.SigningMethod) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// --- Operational endpoints ---

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	h := decode[domain.HealthStatus](t, rec)
	if h.Status != domain.HealthHealthy || len(h.Services) != 2 || h.Services[1].Name != "store" {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestHealthz_Degraded(t *testing.T) {
	router := handler.NewRouter(handler.Deps{
		Health: map[string]port.HealthChecker{"postgres": failingPing{}},
	}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "")

	h := decode[domain.HealthStatus](t, rec)
	if h.Status != domain.HealthDegraded || h.Services[1].Error == "" {
		t.Errorf("expected degraded postgres, got %+v", h)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Deps{}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/readyz", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t, "", nil)
	do(t, router, http.MethodGet, "/v1/users/u-1/dashboard", "")

	rec := do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "insight_evaluations_total") {
		t.Error("expected evaluation counter in exposition")
	}

	rec = do(t, router, http.MethodGet, "/v1/metrics/insight", "")
	m := decode[domain.InsightMetrics](t, rec)
	if m.Evaluations != 1 {
		t.Errorf("expected 1 evaluation, got %d", m.Evaluations)
	}
}

// --- Insights ---

func TestDashboard(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodGet, "/v1/users/u-1/dashboard", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	r := decode[domain.InsightReport](t, rec)
	if r.UserID != "u-1" || !r.Spending.TotalSpend.Equal(decimal.NewFromInt(800)) {
		t.Errorf("unexpected report %+v", r.Spending)
	}
	if r.Wellness.Score != 100 || r.Wellness.Grade != domain.GradeExcellent {
		t.Errorf("expected 100/Excellent, got %d/%s", r.Wellness.Score, r.Wellness.Grade)
	}
}

func TestInsightEndpoints(t *testing.T) {
	router := newTestRouter(t, "", nil)

	for _, path := range []string{"wellness", "action-plan", "affordability", "subscriptions/review"} {
		rec := do(t, router, http.MethodGet, "/v1/users/u-1/"+path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestUnknownUser(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodGet, "/v1/users/ghost/wellness", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAffordability_Rent(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodGet, "/v1/users/u-1/affordability?rent=1200", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	a := decode[domain.Affordability](t, rec)
	if !a.HousingHeadroom.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected headroom 200, got %s", a.HousingHeadroom)
	}

	rec = do(t, router, http.MethodGet, "/v1/users/u-1/affordability?rent=lots", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"field":"rent"`) {
		t.Errorf("expected rent field in error, got %s", rec.Body.String())
	}
}

// --- Subscriptions ---

func TestCancelSubscription(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodPost, "/v1/users/u-1/subscriptions/s1/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/v1/users/u-1/subscriptions/review", "")
	review := decode[domain.SubscriptionReview](t, rec)
	if len(review.LowUsage) != 0 {
		t.Errorf("expected no low-usage subscriptions after cancel, got %+v", review.LowUsage)
	}

	rec = do(t, router, http.MethodPost, "/v1/users/u-1/subscriptions/nope/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCancelSuggested(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodPost, "/v1/users/u-1/subscriptions/cancel-suggested", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	res := decode[domain.CancelResult](t, rec)
	if len(res.Canceled) != 1 || res.Canceled[0] != "s1" {
		t.Errorf("unexpected result %+v", res)
	}
}

// --- Transactions ---

func TestRecordTransaction(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodPost, "/v1/users/u-1/transactions",
		`{"amount": "-1200", "category": "travel", "timestamp": "2025-02-02T10:00:00Z"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[domain.RecordTransactionResult](t, rec)
	if res.MonthlyTotal.MonthKey != "2025-02" || !res.MonthlyTotal.Total.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("unexpected monthly total %+v", res.MonthlyTotal)
	}
	if !res.AlertSent {
		t.Error("expected budget alert on crossing")
	}
}

func TestRecordTransaction_BadInput(t *testing.T) {
	router := newTestRouter(t, "", nil)

	cases := map[string]string{
		"malformed": `{"amount":`,
		"zero":      `{"amount": 0}`,
	}
	for name, body := range cases {
		rec := do(t, router, http.MethodPost, "/v1/users/u-1/transactions", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

// --- Advisor ---

func TestAdvisorChat(t *testing.T) {
	router := newTestRouter(t, "", nil)

	rec := do(t, router, http.MethodPost, "/v1/users/u-1/advisor/chat",
		`{"history": [{"role": "assistant", "content": "Hi!"}], "message": "What should I cut?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[domain.AdvisorChatResponse](t, rec)
	if resp.Reply != "Cancel StreamMax." || resp.ConversationID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAdvisorChat_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"upstream", &domain.ErrExternalService{Service: "advisor", Err: errors.New("500")}, http.StatusBadGateway},
		{"circuit", &domain.ErrCircuitOpen{Service: "advisor"}, http.StatusServiceUnavailable},
		{"timeout", &domain.ErrTimeout{Operation: "advisor"}, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, "", &stubAdvisor{err: tc.err})
			rec := do(t, router, http.MethodPost, "/v1/users/u-1/advisor/chat", `{"message": "hi"}`)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

// --- Auth ---

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret"
	router := newTestRouter(t, secret, nil)
	path := "/v1/users/u-1/wellness"

	cases := []struct {
		name   string
		header []string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"bad scheme", []string{"Authorization", "Basic abc"}, http.StatusUnauthorized},
		{"wrong key", []string{"Authorization", "Bearer " + token(t, "other", "u-1", jwt.SigningMethodHS256)}, http.StatusUnauthorized},
		{"wrong alg", []string{"Authorization", "Bearer " + token(t, secret, "u-1", jwt.SigningMethodHS512)}, http.StatusUnauthorized},
		{"other user", []string{"Authorization", "Bearer " + token(t, secret, "u-2", jwt.SigningMethodHS256)}, http.StatusForbidden},
		{"ok", []string{"Authorization", "Bearer " + token(t, secret, "u-1", jwt.SigningMethodHS256)}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, path, "", tc.header...)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	if rec := do(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("operational endpoints must stay open, got %d", rec.Code)
	}
}
