// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ProfileStore retrieves the per-user income/expense profile.
type ProfileStore interface {
	GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
}

// TransactionStore reads and appends transactions. A nil window returns everything.
type TransactionStore interface {
	GetTransactions(ctx context.Context, userID string, window *domain.Window) ([]domain.Transaction, error)
	InsertTransaction(ctx context.Context, userID string, tx *domain.Transaction) (*domain.Transaction, error)
}

// SubscriptionStore reads subscriptions and updates their status.
type SubscriptionStore interface {
	GetSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, userID, subscriptionID string, status domain.SubscriptionStatus) error
}

// AccountStore retrieves account balances (display only).
type AccountStore interface {
	GetAccounts(ctx context.Context, userID string) ([]domain.Account, error)
}

// BudgetStore keeps the YYYY-MM monthly spend mirror.
type BudgetStore interface {
	GetMonthlyTotal(ctx context.Context, userID, monthKey string) (decimal.Decimal, error)
	SetMonthlyTotal(ctx context.Context, userID, monthKey string, total decimal.Decimal) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// FinanceStore is the full persistence port.
// Implemented by the Supabase, PostgreSQL and in-memory adapters.
type FinanceStore interface {
	ProfileStore
	TransactionStore
	SubscriptionStore
	AccountStore
	BudgetStore
}

// Cache provides generic caching. The TTL cache and the memo both satisfy it.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
