package account

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence surface for accounts and linked identities.
// Every write method refreshes the account's or identity's UpdatedAt; the
// store owns that invariant so callers never have to remember it.
type Store interface {
	CreateAccount(ctx context.Context, acc *Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error

	// LinkIdentity inserts the identity or, when (provider, username)
	// already belongs to the same account, refreshes its name and refresh
	// token. Linking to a different account fails with ErrIdentityTaken.
	LinkIdentity(ctx context.Context, ident *Identity) error
	FindByIdentity(ctx context.Context, provider, username string) (*Account, error)
}
