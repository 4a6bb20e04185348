// Package memo is a bounded memoisation cache for engine outputs, backed by
// ristretto. Keys are content hashes of the engine input (see Key), so an
// entry never needs invalidation: changed input means a different key.
package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Memo is a typed wrapper around a ristretto cache. Every entry costs 1, so
// maxEntries bounds the number of memoised results.
type Memo[T any] struct {
	cache *ristretto.Cache
}

// New creates a memo holding at most maxEntries results.
func New[T any](maxEntries int64) (*Memo[T], error) {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memo cache: %w", err)
	}
	return &Memo[T]{cache: c}, nil
}

// Get returns the memoised value for key.
func (m *Memo[T]) Get(key string) (T, bool) {
	var zero T
	v, ok := m.cache.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Set stores value under key. Admission is asynchronous: a Get right after
// Set may still miss until the write buffers drain (see Wait).
func (m *Memo[T]) Set(key string, value T) {
	m.cache.Set(key, value, 1)
}

// Delete removes key.
func (m *Memo[T]) Delete(key string) {
	m.cache.Del(key)
}

// Wait blocks until pending writes are applied.
func (m *Memo[T]) Wait() {
	m.cache.Wait()
}

// Close releases the cache goroutines.
func (m *Memo[T]) Close() {
	m.cache.Close()
}

// Key hashes the JSON encoding of parts into a hex SHA-256 digest.
func Key(parts ...any) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			return "", fmt.Errorf("hashing memo key: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
