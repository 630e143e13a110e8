package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"accountd/pkg/pg"
)

// PGStore persists accounts and identities in Postgres. UpdatedAt is
// touched explicitly in every write statement rather than by a trigger, so
// the invariant is visible in the code and survives a storage swap.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed account store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const accountColumns = `id, email, name, password_hash, verified, last_login_at, created_at, updated_at`

func (s *PGStore) CreateAccount(ctx context.Context, acc *Account) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		acc.ID, acc.Email, acc.Name, acc.PasswordHash, acc.Verified).
		Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *PGStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.getAccount(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (s *PGStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.getAccount(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
}

func (s *PGStore) getAccount(ctx context.Context, query string, arg any) (*Account, error) {
	var acc Account
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash,
		&acc.Verified, &acc.LastLoginAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

func (s *PGStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return s.touchUpdate(ctx,
		`UPDATE accounts SET verified = true, updated_at = now() WHERE id = $1`, id)
}

func (s *PGStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2`,
		passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PGStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return s.touchUpdate(ctx,
		`UPDATE accounts SET last_login_at = now(), updated_at = now() WHERE id = $1`, id)
}

func (s *PGStore) touchUpdate(ctx context.Context, query string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// LinkIdentity upserts on the (provider, lower(username)) unique index.
// The conflict branch only fires for the same account; a conflict with a
// different account falls through to a no-op update guarded by the WHERE
// clause and surfaces as ErrIdentityTaken.
func (s *PGStore) LinkIdentity(ctx context.Context, ident *Identity) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, account_id, provider, username, name, refresh_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (provider, lower(username)) DO UPDATE
		 SET name = EXCLUDED.name,
		     refresh_token = EXCLUDED.refresh_token,
		     updated_at = now()
		 WHERE identities.account_id = EXCLUDED.account_id
		 RETURNING id, created_at, updated_at`,
		ident.ID, ident.AccountID, ident.Provider, ident.Username,
		ident.Name, ident.RefreshToken).
		Scan(&ident.ID, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			// The DO UPDATE matched a row owned by a different account.
			return ErrIdentityTaken
		}
		if pg.IsForeignKeyViolationError(err) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to link identity: %w", err)
	}
	return nil
}

func (s *PGStore) FindByIdentity(ctx context.Context, provider, username string) (*Account, error) {
	var acc Account
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.email, a.name, a.password_hash, a.verified, a.last_login_at, a.created_at, a.updated_at
		 FROM accounts a
		 JOIN identities i ON i.account_id = a.id
		 WHERE i.provider = $1 AND lower(i.username) = lower($2)`,
		provider, username).Scan(
		&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash,
		&acc.Verified, &acc.LastLoginAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by identity: %w", err)
	}
	return &acc, nil
}

var _ Store = (*PGStore)(nil)
