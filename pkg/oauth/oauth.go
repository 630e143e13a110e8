// Package oauth implements the OAuth2 login flow against external providers:
// authorization URL construction with a CSRF state token, and the callback
// side that validates state, exchanges the code, and returns a normalized
// identity for the account layer to upsert.
package oauth

import (
	"context"
	"time"
)

// Provider identifiers.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// Identity is the normalized profile a provider adapter resolves from an
// authorization code. Username is the provider-side login handle (the email
// for Google, the login for GitHub). Email is the address the provider
// vouches for; it can be empty when the provider exposes none.
type Identity struct {
	Provider     string
	Username     string
	Email        string
	Name         string
	RefreshToken string
}

// State is a single-use CSRF token bound to one provider for the duration
// of the redirect dance.
type State struct {
	Value     string
	Provider  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ProviderAdapter hides provider specifics behind a uniform surface: build
// the authorization URL and resolve an authorization code into an Identity.
type ProviderAdapter interface {
	Provider() string
	AuthURL(state string) string
	ResolveIdentity(ctx context.Context, code string) (Identity, error)
}

// StateStore persists issued state tokens. Consume must be atomic: of N
// concurrent callbacks presenting the same state, exactly one succeeds.
type StateStore interface {
	Create(ctx context.Context, state State) error
	Consume(ctx context.Context, value, provider string) error

	// DeleteExpired removes states past their expiry and reports how many
	// were dropped. Abandoned redirects never come back for their state.
	DeleteExpired(ctx context.Context) (int64, error)
}
