// Package password implements credential hashing and password strength
// scoring. Digests are self-describing (algorithm, iteration count, and salt
// travel with the hash), so hashing parameters can be raised over time and
// outdated digests upgraded transparently on the next successful login.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// algPBKDF2SHA256 identifies the only algorithm currently produced.
	// Older algorithms remain verifiable as long as a case exists in verify.
	algPBKDF2SHA256 = "pbkdf2_sha256"

	// DefaultIterations is the current PBKDF2 work factor.
	DefaultIterations = 216000

	saltLength = 16
	keyLength  = 32
)

// Hasher produces and verifies self-describing password digests.
type Hasher struct {
	iterations int
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithIterations overrides the PBKDF2 iteration count. Values below 1 are
// ignored. Lower counts are only appropriate in tests.
func WithIterations(n int) HasherOption {
	return func(h *Hasher) {
		if n > 0 {
			h.iterations = n
		}
	}
}

// NewHasher creates a Hasher with the current default parameters.
func NewHasher(opts ...HasherOption) *Hasher {
	h := &Hasher{iterations: DefaultIterations}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash derives a digest from the plaintext using a fresh random salt.
// The returned string has the form "pbkdf2_sha256$<iterations>$<salt>$<hash>".
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plain), salt, h.iterations, keyLength, sha256.New)

	return strings.Join([]string{
		algPBKDF2SHA256,
		strconv.Itoa(h.iterations),
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key),
	}, "$"), nil
}

// Verify recomputes the digest for the plaintext and compares in constant
// time. A malformed digest yields ErrMalformedDigest, which callers must not
// report as a credential mismatch: it indicates corrupt stored data, not a
// wrong password.
func (h *Hasher) Verify(plain, digest string) (bool, error) {
	alg, iterations, salt, key, err := decodeDigest(digest)
	if err != nil {
		return false, err
	}

	switch alg {
	case algPBKDF2SHA256:
		computed := pbkdf2.Key([]byte(plain), salt, iterations, len(key), sha256.New)
		return subtle.ConstantTimeCompare(computed, key) == 1, nil
	default:
		return false, fmt.Errorf("%w: unknown algorithm %q", ErrMalformedDigest, alg)
	}
}

// NeedsRehash reports whether the digest was produced with outdated
// parameters. Malformed digests report true so the credential is replaced on
// the next successful authentication.
func (h *Hasher) NeedsRehash(digest string) bool {
	alg, iterations, _, _, err := decodeDigest(digest)
	if err != nil {
		return true
	}
	return alg != algPBKDF2SHA256 || iterations < h.iterations
}

// decodeDigest splits a digest into its components, validating shape only.
func decodeDigest(digest string) (alg string, iterations int, salt, key []byte, err error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 4 {
		return "", 0, nil, nil, fmt.Errorf("%w: expected 4 segments, got %d", ErrMalformedDigest, len(parts))
	}

	iterations, convErr := strconv.Atoi(parts[1])
	if convErr != nil || iterations < 1 {
		return "", 0, nil, nil, fmt.Errorf("%w: bad iteration count %q", ErrMalformedDigest, parts[1])
	}

	salt, saltErr := base64.RawURLEncoding.DecodeString(parts[2])
	if saltErr != nil || len(salt) == 0 {
		return "", 0, nil, nil, fmt.Errorf("%w: bad salt encoding", ErrMalformedDigest)
	}

	key, keyErr := base64.RawURLEncoding.DecodeString(parts[3])
	if keyErr != nil || len(key) == 0 {
		return "", 0, nil, nil, fmt.Errorf("%w: bad hash encoding", ErrMalformedDigest)
	}

	return parts[0], iterations, salt, key, nil
}
