package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/records"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Finance store (implements port.FinanceStore)
// ============================================================

// GetUserProfile fetches one row of user_profiles.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := getRows[records.ProfileRow](ctx, c, "user_profiles", url.Values{
		"user_id": {eq(userID)},
		"limit":   {"1"},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return records.NormalizeProfile(rows[0])
}

// GetTransactions fetches transactions oldest first, filtered by window when given.
func (c *Client) GetTransactions(ctx context.Context, userID string, window *domain.Window) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	q := url.Values{
		"user_id": {eq(userID)},
		"order":   {"occurred_at.asc,id.asc"},
	}
	if window != nil {
		q.Add("occurred_at", "gte."+window.Start.UTC().Format(time.RFC3339))
		q.Add("occurred_at", "lt."+window.End.UTC().Format(time.RFC3339))
	}

	rows, err := getRows[records.TransactionRow](ctx, c, "transactions", q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("transactions.count", len(rows)))
	return records.NormalizeTransactions(rows)
}

// InsertTransaction stores tx and returns the persisted record.
func (c *Client) InsertTransaction(ctx context.Context, userID string, tx *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	row := records.TransactionToRow(userID, tx)
	rows, err := resilience.Execute(ctx, c.cb, c.cfg, serviceName, func(ctx context.Context) ([]records.TransactionRow, error) {
		body, err := c.do(ctx, request{method: http.MethodPost, table: "transactions", body: row})
		if err != nil {
			return nil, err
		}
		var out []records.TransactionRow
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("failed to decode inserted transaction: %w", err)
		}
		return out, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(rows) == 0 {
		rows = []records.TransactionRow{row}
	}

	txns, err := records.NormalizeTransactions(rows[:1])
	if err != nil {
		return nil, err
	}
	return &txns[0], nil
}

// GetSubscriptions fetches all of a user's subscriptions.
func (c *Client) GetSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscriptions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := getRows[records.SubscriptionRow](ctx, c, "subscriptions", url.Values{
		"user_id": {eq(userID)},
		"order":   {"id.asc"},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records.NormalizeSubscriptions(rows)
}

// UpdateSubscriptionStatus patches one subscription owned by userID.
func (c *Client) UpdateSubscriptionStatus(ctx context.Context, userID, subscriptionID string, status domain.SubscriptionStatus) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateSubscriptionStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("subscription.id", subscriptionID),
		attribute.String("subscription.status", string(status)),
	)

	updated, err := resilience.Execute(ctx, c.cb, c.cfg, serviceName, func(ctx context.Context) (int, error) {
		body, err := c.do(ctx, request{
			method: http.MethodPatch,
			table:  "subscriptions",
			query:  url.Values{"id": {eq(subscriptionID)}, "user_id": {eq(userID)}},
			body:   map[string]any{"status": status},
		})
		if err != nil {
			return 0, err
		}
		var rows []records.SubscriptionRow
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rows); err != nil {
				return 0, fmt.Errorf("failed to decode updated subscription: %w", err)
			}
		}
		return len(rows), nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if updated == 0 {
		return &domain.ErrNotFound{Resource: "subscription", ID: subscriptionID}
	}
	return nil
}

// GetAccounts fetches account balances.
func (c *Client) GetAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetAccounts")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := getRows[records.AccountRow](ctx, c, "accounts", url.Values{
		"user_id": {eq(userID)},
		"order":   {"id.asc"},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return records.NormalizeAccounts(rows)
}

// ============================================================
// Monthly spend mirror (monthly_totals)
// ============================================================

// GetMonthlyTotal returns the mirrored outflow for monthKey, zero when absent.
func (c *Client) GetMonthlyTotal(ctx context.Context, userID, monthKey string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetMonthlyTotal")
	defer span.End()

	rows, err := getRows[records.MonthlyTotalRow](ctx, c, "monthly_totals", url.Values{
		"user_id":   {eq(userID)},
		"month_key": {eq(monthKey)},
		"limit":     {"1"},
	})
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].Total, nil
}

// SetMonthlyTotal upserts the mirrored outflow for monthKey.
func (c *Client) SetMonthlyTotal(ctx context.Context, userID, monthKey string, total decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetMonthlyTotal")
	defer span.End()

	_, err := resilience.Execute(ctx, c.cb, c.cfg, serviceName, func(ctx context.Context) (struct{}, error) {
		_, err := c.do(ctx, request{
			method: http.MethodPost,
			table:  "monthly_totals",
			query:  url.Values{"on_conflict": {"user_id,month_key"}},
			body:   records.MonthlyTotalRow{UserID: userID, MonthKey: monthKey, Total: total},
			prefer: "resolution=merge-duplicates,return=minimal",
		})
		return struct{}{}, err
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ListUserIDs returns every profile's user ID, sorted.
func (c *Client) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListUserIDs")
	defer span.End()

	rows, err := getRows[records.ProfileRow](ctx, c, "user_profiles", url.Values{"select": {"user_id"}})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping issues a one-row read against user_profiles without retries.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		table:  "user_profiles",
		query:  url.Values{"select": {"user_id"}, "limit": {"1"}},
	})
	return err
}
