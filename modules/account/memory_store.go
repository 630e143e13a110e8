package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts and identities in memory for tests and local
// development.
type MemoryStore struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*Account
	identities map[identityKey]*Identity
}

type identityKey struct {
	provider string
	username string
}

func newIdentityKey(provider, username string) identityKey {
	return identityKey{provider: provider, username: strings.ToLower(username)}
}

// NewMemoryStore creates an in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[uuid.UUID]*Account),
		identities: make(map[identityKey]*Identity),
	}
}

func (ms *MemoryStore) CreateAccount(ctx context.Context, acc *Account) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, existing := range ms.accounts {
		if strings.EqualFold(existing.Email, acc.Email) {
			return ErrEmailTaken
		}
	}

	now := time.Now()
	cp := *acc
	cp.CreatedAt = now
	cp.UpdatedAt = now
	ms.accounts[acc.ID] = &cp

	acc.CreatedAt = now
	acc.UpdatedAt = now
	return nil
}

func (ms *MemoryStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	acc, ok := ms.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (ms *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, acc := range ms.accounts {
		if strings.EqualFold(acc.Email, email) {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (ms *MemoryStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	acc, ok := ms.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.Verified = true
	acc.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	acc, ok := ms.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	acc.PasswordHash = passwordHash
	acc.UpdatedAt = time.Now()
	return nil
}

func (ms *MemoryStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	acc, ok := ms.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	now := time.Now()
	acc.LastLoginAt = &now
	acc.UpdatedAt = now
	return nil
}

func (ms *MemoryStore) LinkIdentity(ctx context.Context, ident *Identity) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.accounts[ident.AccountID]; !ok {
		return ErrAccountNotFound
	}

	now := time.Now()
	key := newIdentityKey(ident.Provider, ident.Username)
	if existing, ok := ms.identities[key]; ok {
		if existing.AccountID != ident.AccountID {
			return ErrIdentityTaken
		}
		existing.Name = ident.Name
		existing.RefreshToken = ident.RefreshToken
		existing.UpdatedAt = now

		ident.ID = existing.ID
		ident.CreatedAt = existing.CreatedAt
		ident.UpdatedAt = now
		return nil
	}

	cp := *ident
	cp.CreatedAt = now
	cp.UpdatedAt = now
	ms.identities[key] = &cp

	ident.CreatedAt = now
	ident.UpdatedAt = now
	return nil
}

func (ms *MemoryStore) FindByIdentity(ctx context.Context, provider, username string) (*Account, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ident, ok := ms.identities[newIdentityKey(provider, username)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc, ok := ms.accounts[ident.AccountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

// GetIdentity returns a copy of the stored identity, for assertions in
// tests.
func (ms *MemoryStore) GetIdentity(provider, username string) (*Identity, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ident, ok := ms.identities[newIdentityKey(provider, username)]
	if !ok {
		return nil, false
	}
	cp := *ident
	return &cp, true
}

var _ Store = (*MemoryStore)(nil)
