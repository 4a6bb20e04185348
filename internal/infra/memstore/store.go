// Package memstore is an in-memory finance store seeded from a JSON document.
// It backs local runs, the CLI and handler tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/records"

	"github.com/shopspring/decimal"
)

// Seed is the on-disk document: one array per table, rows keyed by user_id.
type Seed struct {
	Users         []records.ProfileRow      `json:"users"`
	Transactions  []records.TransactionRow  `json:"transactions"`
	Subscriptions []records.SubscriptionRow `json:"subscriptions"`
	Accounts      []records.AccountRow      `json:"accounts"`
}

type userData struct {
	profile       *domain.UserProfile
	transactions  []domain.Transaction
	subscriptions []domain.Subscription
	accounts      []domain.Account
	monthly       map[string]decimal.Decimal
}

// Store is a thread-safe in-memory implementation of port.FinanceStore.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userData
}

// New creates an empty store.
func New() *Store {
	return &Store{users: make(map[string]*userData)}
}

// LoadFile reads a seed document from path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a seed document and normalises every row.
func Load(r io.Reader) (*Store, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	s := New()
	if err := s.Apply(seed); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply adds the rows of seed to the store.
func (s *Store) Apply(seed Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range seed.Users {
		p, err := records.NormalizeProfile(row)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", row.UserID, err)
		}
		s.user(p.UserID).profile = p
	}

	for _, row := range seed.Transactions {
		txns, err := records.NormalizeTransactions([]records.TransactionRow{row})
		if err != nil {
			return fmt.Errorf("seed transaction %q: %w", row.ID, err)
		}
		u := s.user(row.UserID)
		u.transactions = append(u.transactions, txns[0])
	}

	for _, row := range seed.Subscriptions {
		subs, err := records.NormalizeSubscriptions([]records.SubscriptionRow{row})
		if err != nil {
			return fmt.Errorf("seed subscription %q: %w", row.ID, err)
		}
		u := s.user(row.UserID)
		u.subscriptions = append(u.subscriptions, subs[0])
	}

	for _, row := range seed.Accounts {
		accts, err := records.NormalizeAccounts([]records.AccountRow{row})
		if err != nil {
			return fmt.Errorf("seed account %q: %w", row.ID, err)
		}
		u := s.user(row.UserID)
		u.accounts = append(u.accounts, accts[0])
	}

	for _, u := range s.users {
		sortTransactions(u.transactions)
	}
	return nil
}

// user returns the record set for id, creating it. Caller holds the write lock.
func (s *Store) user(id string) *userData {
	u, ok := s.users[id]
	if !ok {
		u = &userData{monthly: make(map[string]decimal.Decimal)}
		s.users[id] = u
	}
	return u
}

// GetUserProfile returns a copy of the stored profile.
func (s *Store) GetUserProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok || u.profile == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	p := *u.profile
	if p.Essentials != nil {
		e := *p.Essentials
		p.Essentials = &e
	}
	return &p, nil
}

// GetTransactions returns the user's transactions inside window, oldest first.
func (s *Store) GetTransactions(_ context.Context, userID string, window *domain.Window) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Transaction{}
	u, ok := s.users[userID]
	if !ok {
		return out, nil
	}
	for _, t := range u.transactions {
		if window == nil || window.Contains(t.Timestamp) {
			out = append(out, t)
		}
	}
	return out, nil
}

// InsertTransaction appends tx for an existing user.
func (s *Store) InsertTransaction(_ context.Context, userID string, tx *domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.profile == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	for _, existing := range u.transactions {
		if existing.ID == tx.ID {
			return nil, &domain.ErrConflict{Message: "transaction already exists"}
		}
	}

	stored := *tx
	if stored.Category == "" {
		stored.Category = records.DefaultCategory
	}
	u.transactions = append(u.transactions, stored)
	sortTransactions(u.transactions)
	return &stored, nil
}

// GetSubscriptions returns a copy of the user's subscriptions.
func (s *Store) GetSubscriptions(_ context.Context, userID string) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Subscription{}
	if u, ok := s.users[userID]; ok {
		out = append(out, u.subscriptions...)
	}
	return out, nil
}

// UpdateSubscriptionStatus sets the status of one subscription.
func (s *Store) UpdateSubscriptionStatus(_ context.Context, userID, subscriptionID string, status domain.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		for i := range u.subscriptions {
			if u.subscriptions[i].ID == subscriptionID {
				u.subscriptions[i].Status = status
				return nil
			}
		}
	}
	return &domain.ErrNotFound{Resource: "subscription", ID: subscriptionID}
}

// GetAccounts returns a copy of the user's accounts.
func (s *Store) GetAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Account{}
	if u, ok := s.users[userID]; ok {
		out = append(out, u.accounts...)
	}
	return out, nil
}

// GetMonthlyTotal returns the mirrored outflow for monthKey, zero when absent.
func (s *Store) GetMonthlyTotal(_ context.Context, userID, monthKey string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.users[userID]; ok {
		if total, ok := u.monthly[monthKey]; ok {
			return total, nil
		}
	}
	return decimal.Zero, nil
}

// SetMonthlyTotal stores the mirrored outflow for monthKey.
func (s *Store) SetMonthlyTotal(_ context.Context, userID, monthKey string, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user(userID).monthly[monthKey] = total
	return nil
}

// ListUserIDs returns the IDs of users with a profile, sorted.
func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id, u := range s.users {
		if u.profile != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func sortTransactions(txns []domain.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].Timestamp.Equal(txns[j].Timestamp) {
			return txns[i].Timestamp.Before(txns[j].Timestamp)
		}
		return txns[i].ID < txns[j].ID
	})
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
