package account

import "errors"

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken is returned when the email already belongs to another
	// account, compared case-insensitively.
	ErrEmailTaken = errors.New("email already taken")

	// ErrIdentityTaken is returned when (provider, username) is already
	// linked to a different account.
	ErrIdentityTaken = errors.New("identity already linked to another account")

	// ErrInvalidCredentials is the generic login failure. It deliberately
	// does not distinguish unknown email from wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
