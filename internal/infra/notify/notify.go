// Package notify delivers budget alerts to users.
package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("notify")

// DefaultSender is the From address when none is configured.
const DefaultSender = "noreply@pocketadvisor.com"

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailNotifier sends budget alerts over SMTP.
type EmailNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger
	send   sendFunc
}

// NewEmailNotifier creates an SMTP-backed notifier.
func NewEmailNotifier(cfg SMTPConfig, logger *zap.Logger) *EmailNotifier {
	if cfg.Sender == "" {
		cfg.Sender = DefaultSender
	}
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendBudgetAlert emails the user that the month's spend crossed the limit.
// Alerts for users without an email address are logged and dropped.
func (n *EmailNotifier) SendBudgetAlert(ctx context.Context, alert *domain.BudgetAlert) error {
	_, span := tracer.Start(ctx, "EmailNotifier.SendBudgetAlert")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", alert.UserID),
		attribute.String("budget.month", alert.MonthKey),
	)

	if alert.Email == "" {
		n.logger.Warn("no email on profile, budget alert dropped",
			zap.String("user_id", alert.UserID),
			zap.String("month", alert.MonthKey),
		)
		return nil
	}

	e := BudgetAlertEmail(n.cfg.Sender, alert)

	addr := fmt.Sprintf("%s:%s", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(e, addr, auth); err != nil {
		span.RecordError(err)
		n.logger.Error("failed to send budget alert",
			zap.String("user_id", alert.UserID),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "notifier", Err: err}
	}

	n.logger.Info("budget alert sent",
		zap.String("user_id", alert.UserID),
		zap.String("month", alert.MonthKey),
	)
	return nil
}

// BudgetAlertEmail renders the alert message.
func BudgetAlertEmail(from string, alert *domain.BudgetAlert) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{alert.Email}
	e.Subject = "Budget Alert: Monthly Limit Exceeded"
	e.Text = []byte(fmt.Sprintf(
		"Dear User,\n\n"+
			"You have exceeded your monthly budget limit of $%s. "+
			"Your total spending for %s is $%s.\n\n"+
			"Please review your expenses and adjust your budget accordingly.\n\n"+
			"Best regards,\nPocketAdvisor Team",
		alert.Limit.StringFixed(2), alert.MonthKey, alert.Total.StringFixed(2),
	))
	return e
}

// LogNotifier records alerts in the log only. Used when SMTP is not configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendBudgetAlert logs the alert.
func (n *LogNotifier) SendBudgetAlert(_ context.Context, alert *domain.BudgetAlert) error {
	n.logger.Info("budget limit exceeded",
		zap.String("user_id", alert.UserID),
		zap.String("month", alert.MonthKey),
		zap.String("limit", alert.Limit.StringFixed(2)),
		zap.String("total", alert.Total.StringFixed(2)),
	)
	return nil
}
