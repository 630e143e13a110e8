package oauth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStateStore persists states in the oauth_states table.
type PGStateStore struct {
	pool *pgxpool.Pool
}

// NewPGStateStore creates a Postgres-backed state store.
func NewPGStateStore(pool *pgxpool.Pool) *PGStateStore {
	return &PGStateStore{pool: pool}
}

func (s *PGStateStore) Create(ctx context.Context, state State) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oauth_states (value, provider, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		state.Value, state.Provider, state.ExpiresAt, state.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert oauth state: %w", err)
	}
	return nil
}

// Consume deletes the state in one conditional statement, so of N
// concurrent callbacks presenting the same state exactly one deletes the
// row. Missing, expired, and wrong-provider states all come back as
// ErrStateMismatch.
func (s *PGStateStore) Consume(ctx context.Context, value, provider string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM oauth_states
		 WHERE value = $1 AND provider = $2 AND expires_at > now()`,
		value, provider)
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateMismatch
	}
	return nil
}

// DeleteExpired removes states past their expiry.
func (s *PGStateStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM oauth_states WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	return tag.RowsAffected(), nil
}
