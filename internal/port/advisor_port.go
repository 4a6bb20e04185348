package port

import (
	"context"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
)

// Advisor relays a conversation to an LLM provider.
type Advisor interface {
	Complete(ctx context.Context, req *domain.AdvisorRequest) (*domain.AdvisorResponse, error)
	Name() string
}

// Notifier delivers budget alerts.
type Notifier interface {
	SendBudgetAlert(ctx context.Context, alert *domain.BudgetAlert) error
}
