package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func alert() *domain.BudgetAlert {
	return &domain.BudgetAlert{
		UserID:   "u-1",
		Email:    "ana@example.com",
		MonthKey: "2025-01",
		Limit:    decimal.NewFromInt(1000),
		Total:    decimal.RequireFromString("1012.5"),
	}
}

func TestBudgetAlertEmail(t *testing.T) {
	e := BudgetAlertEmail(DefaultSender, alert())

	if e.From != DefaultSender || len(e.To) != 1 || e.To[0] != "ana@example.com" {
		t.Errorf("unexpected envelope %s -> %v", e.From, e.To)
	}
	body := string(e.Text)
	if !strings.Contains(body, "$1000.00") || !strings.Contains(body, "$1012.50") || !strings.Contains(body, "2025-01") {
		t.Errorf("unexpected body %q", body)
	}
}

func TestEmailNotifier_Send(t *testing.T) {
	n := NewEmailNotifier(SMTPConfig{Host: "smtp.local", Port: "2525", Username: "u", Password: "p"}, zap.NewNop())

	var gotAddr string
	var gotAuth smtp.Auth
	n.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		gotAddr, gotAuth = addr, auth
		return nil
	}

	if err := n.SendBudgetAlert(context.Background(), alert()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != "smtp.local:2525" || gotAuth == nil {
		t.Errorf("unexpected relay %s (auth %v)", gotAddr, gotAuth)
	}
}

func TestEmailNotifier_NoEmail(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	n := NewEmailNotifier(SMTPConfig{Host: "smtp.local", Port: "25"}, zap.New(core))
	n.send = func(*email.Email, string, smtp.Auth) error {
		t.Fatal("send must not be called")
		return nil
	}

	a := alert()
	a.Email = ""
	if err := n.SendBudgetAlert(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.Len() != 1 {
		t.Errorf("expected a warning, got %d entries", logs.Len())
	}
}

func TestEmailNotifier_SendFailure(t *testing.T) {
	n := NewEmailNotifier(SMTPConfig{Host: "smtp.local", Port: "25"}, zap.NewNop())
	n.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

	err := n.SendBudgetAlert(context.Background(), alert())

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) || ext.Service != "notifier" {
		t.Fatalf("expected ErrExternalService(notifier), got %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	if err := n.SendBudgetAlert(context.Background(), alert()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["total"] != "1012.50" {
		t.Errorf("unexpected log entries %+v", entries)
	}
}
