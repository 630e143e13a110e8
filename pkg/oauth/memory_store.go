package oauth

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore keeps issued states in memory for tests and local
// development.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStateStore creates an in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]State)}
}

func (ms *MemoryStateStore) Create(ctx context.Context, state State) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.states[state.Value] = state
	return nil
}

// Consume removes the state if it is live and bound to the given provider.
// Every failure collapses into ErrStateMismatch.
func (ms *MemoryStateStore) Consume(ctx context.Context, value, provider string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	state, ok := ms.states[value]
	if !ok || state.Provider != provider || time.Now().After(state.ExpiresAt) {
		return ErrStateMismatch
	}

	delete(ms.states, value)
	return nil
}

func (ms *MemoryStateStore) DeleteExpired(ctx context.Context) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var deleted int64
	for value, state := range ms.states {
		if now.After(state.ExpiresAt) {
			delete(ms.states, value)
			deleted++
		}
	}
	return deleted, nil
}
