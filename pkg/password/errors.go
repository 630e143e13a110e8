package password

import "errors"

var (
	// ErrMalformedDigest is returned when a stored digest cannot be decoded.
	// Distinct from a verification mismatch: a mismatch is a wrong password,
	// a malformed digest is corrupt stored state.
	ErrMalformedDigest = errors.New("malformed password digest")
)
