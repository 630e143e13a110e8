package oauth

import "errors"

var (
	// ErrStateMismatch is returned when the callback state was never issued,
	// already consumed, expired, or issued for a different provider. The
	// cases are deliberately not distinguished to the caller.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrInvalidCode is returned when the provider rejects the authorization
	// code during token exchange.
	ErrInvalidCode = errors.New("invalid authorization code")

	// ErrUnknownProvider is returned when no adapter is registered for the
	// requested provider.
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrNoUsername is returned when the provider profile carries no usable
	// login handle.
	ErrNoUsername = errors.New("provider profile has no username")
)
