package token

import "errors"

var (
	// ErrTokenNotFound is returned when no token matches the value+purpose.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired is returned when the token exists but is past expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenAlreadyConsumed is returned when the token was already redeemed.
	ErrTokenAlreadyConsumed = errors.New("token already consumed")
)
