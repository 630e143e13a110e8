package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accountd/pkg/logger"
)

// Service drives the OAuth login flow for a set of registered provider
// adapters. It owns state issuance and validation; everything
// provider-specific lives behind ProviderAdapter.
type Service struct {
	store           StateStore
	adapters        map[string]ProviderAdapter
	logger          *slog.Logger
	stateTTL        time.Duration
	exchangeTimeout time.Duration
}

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithStateTTL sets how long an issued state token stays redeemable.
func WithStateTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.stateTTL = ttl
	}
}

// WithExchangeTimeout bounds the outbound calls to the provider during
// Complete. A hung provider must not hold the callback request forever.
func WithExchangeTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.exchangeTimeout = d
	}
}

// NewService constructs an OAuth service over the given state store and
// provider adapters. Defaults: stateTTL 10 minutes, exchange timeout 10
// seconds.
func NewService(store StateStore, adapters []ProviderAdapter, opts ...Option) *Service {
	s := &Service{
		store:           store,
		adapters:        make(map[string]ProviderAdapter, len(adapters)),
		logger:          logger.Discard(),
		stateTTL:        10 * time.Minute,
		exchangeTimeout: 10 * time.Second,
	}
	for _, a := range adapters {
		s.adapters[a.Provider()] = a
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin issues a fresh state token for the provider and returns the
// authorization URL to redirect the user to.
func (s *Service) Begin(ctx context.Context, provider string) (string, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return "", ErrUnknownProvider
	}

	value, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	now := time.Now()
	state := State{
		Value:     value,
		Provider:  provider,
		ExpiresAt: now.Add(s.stateTTL),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, state); err != nil {
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	return adapter.AuthURL(value), nil
}

// Complete validates the callback state and exchanges the authorization
// code for a normalized identity. The state is consumed first, so a
// replayed callback fails before any outbound call is made.
func (s *Service) Complete(ctx context.Context, provider, state, code string) (Identity, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return Identity{}, ErrUnknownProvider
	}

	if err := s.store.Consume(ctx, state, provider); err != nil {
		if errors.Is(err, ErrStateMismatch) {
			s.logger.Warn("oauth state rejected",
				logger.Component("oauth"),
				slog.String("provider", provider),
			)
			return Identity{}, ErrStateMismatch
		}
		return Identity{}, fmt.Errorf("failed to validate state: %w", err)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()

	identity, err := adapter.ResolveIdentity(exchangeCtx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return Identity{}, ErrInvalidCode
		}
		return Identity{}, fmt.Errorf("failed to resolve identity: %w", err)
	}
	if identity.Username == "" {
		return Identity{}, ErrNoUsername
	}
	identity.Provider = provider

	return identity, nil
}

// PurgeExpired deletes states whose redirect never came back. Consume already
// rejects expired states; this only reclaims the rows.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
