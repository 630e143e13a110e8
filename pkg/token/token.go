// Package token issues and redeems single-use, time-bounded opaque tokens
// for the email verification and password reset flows. A token proves
// possession of an email inbox; it is random, URL-safe, bound to a purpose,
// and consumed atomically so concurrent redemptions cannot both succeed.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a token to a single flow. Purpose is part of the lookup
// key, so a value can never be redeemed for a flow it was not issued for.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeResetPassword Purpose = "reset_password"
)

// Token is a stored one-time credential.
type Token struct {
	Value     string
	AccountID uuid.UUID
	Purpose   Purpose
	IssuedAt  time.Time
	ExpiresAt time.Time
	ConsumedAt *time.Time
}

// Store persists tokens. Consume must be a single atomic operation: under
// concurrent redemption of the same token exactly one caller succeeds and
// the rest receive ErrTokenAlreadyConsumed (or ErrTokenExpired/NotFound).
type Store interface {
	Create(ctx context.Context, t *Token) error
	Consume(ctx context.Context, value string, purpose Purpose) (uuid.UUID, error)

	// DeleteExpired removes tokens whose expiry is older than the
	// retention window and reports how many were dropped.
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Service issues and redeems tokens against a Store.
type Service struct {
	store Store
}

// NewService creates a token service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Issue creates a token for the account and purpose, valid for ttl, and
// returns the opaque value for embedding in a link.
func (s *Service) Issue(ctx context.Context, accountID uuid.UUID, purpose Purpose, ttl time.Duration) (string, error) {
	value, err := generateValue()
	if err != nil {
		return "", fmt.Errorf("failed to generate token value: %w", err)
	}

	now := time.Now()
	t := &Token{
		Value:     value,
		AccountID: accountID,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.store.Create(ctx, t); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return value, nil
}

// Redeem atomically consumes the token and returns the owning account.
// Fails with ErrTokenNotFound, ErrTokenExpired, or ErrTokenAlreadyConsumed.
func (s *Service) Redeem(ctx context.Context, value string, purpose Purpose) (uuid.UUID, error) {
	return s.store.Consume(ctx, value, purpose)
}

// PurgeExpired deletes tokens whose expiry is older than the retention
// window. Expired tokens are already unredeemable; this only reclaims the
// rows.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteExpired(ctx, retention)
}

func generateValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
