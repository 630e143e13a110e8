package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storeKey struct {
	value   string
	purpose Purpose
}

// MemoryStore is an in-memory Store for tests and local development.
// Consumption happens under a single mutex, giving the same exactly-one
// winner guarantee the Postgres store provides via a conditional update.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[storeKey]*Token
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[storeKey]*Token)}
}

func (ms *MemoryStore) Create(ctx context.Context, t *Token) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *t
	ms.tokens[storeKey{value: t.Value, purpose: t.Purpose}] = &cp
	return nil
}

func (ms *MemoryStore) Consume(ctx context.Context, value string, purpose Purpose) (uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	t, ok := ms.tokens[storeKey{value: value, purpose: purpose}]
	if !ok {
		return uuid.Nil, ErrTokenNotFound
	}
	if t.ConsumedAt != nil {
		return uuid.Nil, ErrTokenAlreadyConsumed
	}
	if time.Now().After(t.ExpiresAt) {
		return uuid.Nil, ErrTokenExpired
	}

	now := time.Now()
	t.ConsumedAt = &now
	return t.AccountID, nil
}

func (ms *MemoryStore) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	var deleted int64
	for key, t := range ms.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(ms.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
