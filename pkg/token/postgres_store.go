package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"accountd/pkg/pg"
)

// PGStore persists tokens in the tokens table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed token store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Create(ctx context.Context, t *Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (value, account_id, purpose, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.Value, t.AccountID, string(t.Purpose), t.IssuedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// Consume marks the token consumed and returns its account in one
// conditional update. The WHERE clause rejects consumed and expired rows, so
// of N concurrent redemptions exactly one sees the row; the follow-up read
// only classifies the failure for the losers.
func (s *PGStore) Consume(ctx context.Context, value string, purpose Purpose) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`UPDATE tokens
		 SET consumed_at = now()
		 WHERE value = $1 AND purpose = $2 AND consumed_at IS NULL AND expires_at > now()
		 RETURNING account_id`,
		value, string(purpose)).Scan(&accountID)
	if err == nil {
		return accountID, nil
	}
	if !pg.IsNotFoundError(err) {
		return uuid.Nil, fmt.Errorf("failed to consume token: %w", err)
	}

	// The update matched nothing; find out why.
	var consumedAt *time.Time
	var expiresAt time.Time
	err = s.pool.QueryRow(ctx,
		`SELECT consumed_at, expires_at FROM tokens WHERE value = $1 AND purpose = $2`,
		value, string(purpose)).Scan(&consumedAt, &expiresAt)
	switch {
	case pg.IsNotFoundError(err):
		return uuid.Nil, ErrTokenNotFound
	case err != nil:
		return uuid.Nil, fmt.Errorf("failed to classify token: %w", err)
	case consumedAt != nil:
		return uuid.Nil, ErrTokenAlreadyConsumed
	case time.Now().After(expiresAt):
		return uuid.Nil, ErrTokenExpired
	default:
		return uuid.Nil, ErrTokenNotFound
	}
}

// DeleteExpired removes tokens whose expiry is older than the retention
// window.
func (s *PGStore) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tokens WHERE expires_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
