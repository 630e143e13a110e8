package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	// Low iteration count keeps the test fast.
	h := NewHasher(WithIterations(1000))

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		digest, err := h.Hash("correct horse battery staple")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(digest, "pbkdf2_sha256$1000$"))

		ok, err := h.Verify("correct horse battery staple", digest)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong password fails without error", func(t *testing.T) {
		t.Parallel()

		digest, err := h.Hash("first password")
		require.NoError(t, err)

		ok, err := h.Verify("second password", digest)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("same password hashes to different digests", func(t *testing.T) {
		t.Parallel()

		d1, err := h.Hash("same input")
		require.NoError(t, err)
		d2, err := h.Hash("same input")
		require.NoError(t, err)
		assert.NotEqual(t, d1, d2)
	})

	t.Run("malformed digest is a decode error, not a mismatch", func(t *testing.T) {
		t.Parallel()

		for _, digest := range []string{
			"",
			"not a digest",
			"pbkdf2_sha256$notanumber$salt$key",
			"pbkdf2_sha256$1000$!!!$key",
			"pbkdf2_sha256$1000$c2FsdA$!!!",
			"md5$1000$c2FsdA$a2V5",
		} {
			ok, err := h.Verify("anything", digest)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrMalformedDigest, "digest %q", digest)
		}
	})
}

func TestHasher_NeedsRehash(t *testing.T) {
	t.Parallel()

	t.Run("fresh digest does not need rehash", func(t *testing.T) {
		t.Parallel()

		h := NewHasher(WithIterations(1000))
		digest, err := h.Hash("pw")
		require.NoError(t, err)
		assert.False(t, h.NeedsRehash(digest))
	})

	t.Run("digest below current iterations needs rehash", func(t *testing.T) {
		t.Parallel()

		old := NewHasher(WithIterations(1000))
		digest, err := old.Hash("pw")
		require.NoError(t, err)

		current := NewHasher(WithIterations(2000))
		assert.True(t, current.NeedsRehash(digest))

		// Still verifies with the parameters encoded in the digest.
		ok, err := current.Verify("pw", digest)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("malformed digest needs rehash", func(t *testing.T) {
		t.Parallel()

		h := NewHasher()
		assert.True(t, h.NeedsRehash("garbage"))
	})
}
