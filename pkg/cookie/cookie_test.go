package cookie

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func requestWithCookies(t *testing.T, w *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires at least one secret", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil)
		assert.ErrorIs(t, err, ErrNoSecret)

		_, err = New([]string{""})
		assert.ErrorIs(t, err, ErrNoSecret)
	})

	t.Run("rejects short secrets", func(t *testing.T) {
		t.Parallel()

		_, err := New([]string{"too-short"})
		assert.ErrorIs(t, err, ErrSecretTooShort)
	})
}

func TestManager_Signed(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		m, err := New([]string{testSecret})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		m.SetSigned(w, "session", "account-id-123")

		got, err := m.GetSigned(requestWithCookies(t, w), "session")
		require.NoError(t, err)
		assert.Equal(t, "account-id-123", got)
	})

	t.Run("tampered value fails verification", func(t *testing.T) {
		t.Parallel()

		m, err := New([]string{testSecret})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		m.SetSigned(w, "session", "account-id-123")

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range w.Result().Cookies() {
			parts := strings.SplitN(c.Value, "|", 2)
			require.Len(t, parts, 2)
			// Swap the payload, keep the signature.
			c.Value = "dGFtcGVyZWQ=" + "|" + parts[1]
			r.AddCookie(c)
		}

		_, err = m.GetSigned(r, "session")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing cookie", func(t *testing.T) {
		t.Parallel()

		m, err := New([]string{testSecret})
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err = m.GetSigned(r, "session")
		assert.ErrorIs(t, err, ErrCookieNotFound)
	})

	t.Run("old secret still verifies after rotation", func(t *testing.T) {
		t.Parallel()

		oldSecret := strings.Repeat("a", 32)
		oldManager, err := New([]string{oldSecret})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		oldManager.SetSigned(w, "session", "survivor")

		rotated, err := New([]string{testSecret, oldSecret})
		require.NoError(t, err)

		got, err := rotated.GetSigned(requestWithCookies(t, w), "session")
		require.NoError(t, err)
		assert.Equal(t, "survivor", got)
	})
}

func TestManager_Delete(t *testing.T) {
	t.Parallel()

	m, err := New([]string{testSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	m.Delete(w, "session")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}
