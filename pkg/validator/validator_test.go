package validator_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountd/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("all rules pass", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.Required("email", "user@example.com"),
			validator.ValidEmail("email", "user@example.com"),
		)
		assert.NoError(t, err)
	})

	t.Run("failures accumulate across fields", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.Required("email", ""),
			validator.Required("name", ""),
			validator.MinLen("password", "short", 8),
		)
		require.Error(t, err)

		verrs := validator.Extract(err)
		require.NotNil(t, verrs)
		assert.True(t, verrs.Has("email"))
		assert.True(t, verrs.Has("name"))
		assert.True(t, verrs.Has("password"))
		assert.False(t, verrs.Has("other"))
	})

	t.Run("multiple failures on one field are all kept", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.Required("email", "   "),
			validator.ValidEmail("email", "   "),
		)
		require.Error(t, err)

		verrs := validator.Extract(err)
		assert.Len(t, verrs.Get("email"), 2)
		assert.Equal(t, []string{"email"}, verrs.Fields())
	})
}

func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("nil error", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, validator.Extract(nil))
		assert.False(t, validator.IsValidationError(nil))
	})

	t.Run("unrelated error", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, validator.Extract(errors.New("boom")))
		assert.False(t, validator.IsValidationError(errors.New("boom")))
	})

	t.Run("wrapped validation error", func(t *testing.T) {
		t.Parallel()

		inner := validator.Apply(validator.Required("name", ""))
		wrapped := fmt.Errorf("register: %w", inner)

		assert.True(t, validator.IsValidationError(wrapped))
		verrs := validator.Extract(wrapped)
		require.NotNil(t, verrs)
		assert.True(t, verrs.Has("name"))
	})
}

func TestByField(t *testing.T) {
	t.Parallel()

	err := validator.Apply(
		validator.Required("email", ""),
		validator.ValidEmail("email", ""),
		validator.Required("name", ""),
	)
	require.Error(t, err)

	grouped := validator.Extract(err).ByField()
	assert.Len(t, grouped, 2)
	assert.Len(t, grouped["email"], 2)
	assert.Equal(t, []string{"is required"}, grouped["name"])
}

func TestRules(t *testing.T) {
	t.Parallel()

	t.Run("required trims whitespace", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, validator.Apply(validator.Required("f", " \t ")))
		assert.NoError(t, validator.Apply(validator.Required("f", "x")))
	})

	t.Run("valid email", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validator.Apply(validator.ValidEmail("f", "a.b+tag@sub.example.co")))
		for _, bad := range []string{"", "plain", "a@b", "@example.com", "a@.com"} {
			assert.Error(t, validator.Apply(validator.ValidEmail("f", bad)), bad)
		}
	})

	t.Run("length bounds", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validator.Apply(validator.MinLen("f", "12345678", 8)))
		assert.Error(t, validator.Apply(validator.MinLen("f", "1234567", 8)))
		assert.NoError(t, validator.Apply(validator.MaxLen("f", "1234", 4)))
		assert.Error(t, validator.Apply(validator.MaxLen("f", "12345", 4)))
	})
}
