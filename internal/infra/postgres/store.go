// Package postgres implements the finance store directly over PostgreSQL
// with database/sql and lib/pq, for deployments without PostgREST.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/records"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

const serviceName = "postgres"

// Schema creates the tables the store reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id            TEXT PRIMARY KEY,
	email              TEXT,
	monthly_income     NUMERIC(14,2),
	essential_expenses NUMERIC(14,2),
	rent               NUMERIC(14,2),
	utilities          NUMERIC(14,2),
	groceries          NUMERIC(14,2),
	insurance          NUMERIC(14,2),
	debt               NUMERIC(14,2),
	monthly_budget     NUMERIC(14,2)
);
CREATE TABLE IF NOT EXISTS transactions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES user_profiles(user_id),
	amount      NUMERIC(14,2) NOT NULL,
	category    TEXT,
	merchant    TEXT,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_user_time ON transactions (user_id, occurred_at);
CREATE TABLE IF NOT EXISTS subscriptions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES user_profiles(user_id),
	merchant       TEXT NOT NULL,
	plan           TEXT,
	category       TEXT,
	monthly_amount NUMERIC(14,2),
	days_used      INTEGER,
	status         TEXT
);
CREATE TABLE IF NOT EXISTS accounts (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES user_profiles(user_id),
	name    TEXT,
	kind    TEXT,
	balance NUMERIC(14,2)
);
CREATE TABLE IF NOT EXISTS monthly_totals (
	user_id   TEXT NOT NULL,
	month_key TEXT NOT NULL,
	total     NUMERIC(14,2) NOT NULL,
	PRIMARY KEY (user_id, month_key)
);`

// PostgreSQL error codes translated by translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store provides finance data operations on PostgreSQL.
type Store struct {
	db     *sql.DB
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// Open connects to dsn with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewStore wraps an open database.
func NewStore(db *sql.DB, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{db: db, cb: cb, cfg: cfg, logger: logger}
}

// Migrate creates the schema when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// GetUserProfile retrieves one profile.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetUserProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	row, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) (records.ProfileRow, error) {
		var r records.ProfileRow
		err := s.db.QueryRowContext(ctx, `
			SELECT user_id, email, monthly_income, essential_expenses,
			       rent, utilities, groceries, insurance, debt, monthly_budget
			FROM user_profiles
			WHERE user_id = $1`, userID).
			Scan(&r.UserID, &r.Email, &r.MonthlyIncome, &r.EssentialExpenses,
				&r.Rent, &r.Utilities, &r.Groceries, &r.Insurance, &r.Debt, &r.MonthlyBudget)
		if errors.Is(err, sql.ErrNoRows) {
			return r, &domain.ErrNotFound{Resource: "profile", ID: userID}
		}
		if err != nil {
			return r, fmt.Errorf("failed to query profile: %w", err)
		}
		return r, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records.NormalizeProfile(row)
}

// GetTransactions retrieves transactions oldest first, filtered by window when given.
func (s *Store) GetTransactions(ctx context.Context, userID string, window *domain.Window) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	query := `
		SELECT id, user_id, amount, category, merchant, occurred_at
		FROM transactions
		WHERE user_id = $1`
	args := []any{userID}
	if window != nil {
		query += ` AND occurred_at >= $2 AND occurred_at < $3`
		args = append(args, window.Start, window.End)
	}
	query += ` ORDER BY occurred_at, id`

	rows, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) ([]records.TransactionRow, error) {
		return queryRows(ctx, s.db, query, args, func(sc scanner, r *records.TransactionRow) error {
			return sc.Scan(&r.ID, &r.UserID, &r.Amount, &r.Category, &r.Merchant, &r.OccurredAt)
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records.NormalizeTransactions(rows)
}

// InsertTransaction stores tx. A duplicate ID is a conflict and an unknown
// user is not found.
func (s *Store) InsertTransaction(ctx context.Context, userID string, tx *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.InsertTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	row := records.TransactionToRow(userID, tx)
	_, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) (struct{}, error) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, amount, category, merchant, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			row.ID, row.UserID, row.Amount, row.Category, row.Merchant, row.OccurredAt)
		return struct{}{}, translate(err, "transaction", userID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	txns, err := records.NormalizeTransactions([]records.TransactionRow{row})
	if err != nil {
		return nil, err
	}
	return &txns[0], nil
}

// GetSubscriptions retrieves a user's subscriptions.
func (s *Store) GetSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetSubscriptions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) ([]records.SubscriptionRow, error) {
		return queryRows(ctx, s.db, `
			SELECT id, user_id, merchant, plan, category, monthly_amount, days_used, status
			FROM subscriptions
			WHERE user_id = $1
			ORDER BY id`, []any{userID}, func(sc scanner, r *records.SubscriptionRow) error {
			return sc.Scan(&r.ID, &r.UserID, &r.Merchant, &r.Plan, &r.Category, &r.MonthlyAmount, &r.DaysUsed, &r.Status)
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records.NormalizeSubscriptions(rows)
}

// UpdateSubscriptionStatus sets the status of one subscription owned by userID.
func (s *Store) UpdateSubscriptionStatus(ctx context.Context, userID, subscriptionID string, status domain.SubscriptionStatus) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateSubscriptionStatus")
	defer span.End()
	span.SetAttributes(attribute.String("subscription.id", subscriptionID))

	n, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) (int64, error) {
		res, err := s.db.ExecContext(ctx,
			`UPDATE subscriptions SET status = $1 WHERE id = $2 AND user_id = $3`,
			string(status), subscriptionID, userID)
		if err != nil {
			return 0, fmt.Errorf("failed to update subscription: %w", err)
		}
		return res.RowsAffected()
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "subscription", ID: subscriptionID}
	}
	return nil
}

// GetAccounts retrieves account balances.
func (s *Store) GetAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) ([]records.AccountRow, error) {
		return queryRows(ctx, s.db, `
			SELECT id, user_id, name, kind, balance
			FROM accounts
			WHERE user_id = $1
			ORDER BY id`, []any{userID}, func(sc scanner, r *records.AccountRow) error {
			return sc.Scan(&r.ID, &r.UserID, &r.Name, &r.Kind, &r.Balance)
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records.NormalizeAccounts(rows)
}

// GetMonthlyTotal returns the mirrored outflow for monthKey, zero when absent.
func (s *Store) GetMonthlyTotal(ctx context.Context, userID, monthKey string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetMonthlyTotal")
	defer span.End()

	return resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) (decimal.Decimal, error) {
		var total decimal.Decimal
		err := s.db.QueryRowContext(ctx,
			`SELECT total FROM monthly_totals WHERE user_id = $1 AND month_key = $2`,
			userID, monthKey).Scan(&total)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to query monthly total: %w", err)
		}
		return total, nil
	})
}

// SetMonthlyTotal upserts the mirrored outflow for monthKey.
func (s *Store) SetMonthlyTotal(ctx context.Context, userID, monthKey string, total decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "Postgres.SetMonthlyTotal")
	defer span.End()

	_, err := resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) (struct{}, error) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO monthly_totals (user_id, month_key, total)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, month_key) DO UPDATE SET total = EXCLUDED.total`,
			userID, monthKey, total)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to upsert monthly total: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// ListUserIDs returns every profile's user ID, sorted.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListUserIDs")
	defer span.End()

	return resilience.Execute(ctx, s.cb, s.cfg, serviceName, func(ctx context.Context) ([]string, error) {
		return queryRows(ctx, s.db, `SELECT user_id FROM user_profiles ORDER BY user_id`, nil,
			func(sc scanner, id *string) error { return sc.Scan(id) })
	})
}

type scanner interface {
	Scan(dest ...any) error
}

// queryRows runs query and scans every row into a T.
func queryRows[T any](ctx context.Context, db *sql.DB, query string, args []any, scan func(scanner, *T) error) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// translate maps PostgreSQL constraint errors onto domain errors.
func translate(err error, resource, userID string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return &domain.ErrConflict{Message: fmt.Sprintf("%s already exists", resource)}
		case codeForeignKeyViolation:
			return &domain.ErrNotFound{Resource: "profile", ID: userID}
		}
	}
	return fmt.Errorf("failed to write %s: %w", resource, err)
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
