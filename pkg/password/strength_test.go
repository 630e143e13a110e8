package password

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"accountd/pkg/validator"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	t.Run("empty password", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TooGuessable, Estimate(""))
	})

	t.Run("common passwords score zero regardless of shape", func(t *testing.T) {
		t.Parallel()

		for _, pw := range []string{"password", "Password", "qwerty123", "trustno1"} {
			assert.Equal(t, TooGuessable, Estimate(pw), "password %q", pw)
		}
	})

	t.Run("short simple passwords are weak", func(t *testing.T) {
		t.Parallel()
		assert.LessOrEqual(t, Estimate("abcde"), VeryGuessable)
	})

	t.Run("long mixed passwords are strong", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, VeryUnguessable, Estimate("k9#mQ!x27pLw@Zr4"))
	})

	t.Run("password built from user inputs is penalized", func(t *testing.T) {
		t.Parallel()

		withContext := Estimate("jeffry2024archer", "Jeffry Archer", "jeffry.archer@example.com")
		without := Estimate("jeffry2024archer")
		assert.Less(t, withContext, without)
		assert.LessOrEqual(t, withContext, VeryGuessable)
	})

	t.Run("scores are ordered by complexity", func(t *testing.T) {
		t.Parallel()

		weak := Estimate("abcdefg")
		strong := Estimate("Tr4vel&Dream99!")
		assert.Less(t, weak, strong)
	})
}

func TestSplitInputs(t *testing.T) {
	t.Parallel()

	t.Run("splits on non-word characters and lowercases", func(t *testing.T) {
		t.Parallel()

		words := SplitInputs("Jeffry Archer", "jeffry.archer@example.com")
		assert.Contains(t, words, "jeffry")
		assert.Contains(t, words, "archer")
		assert.Contains(t, words, "example")
	})

	t.Run("drops short fragments", func(t *testing.T) {
		t.Parallel()

		words := SplitInputs("Bo Li bob@x.io")
		assert.NotContains(t, words, "bo")
		assert.NotContains(t, words, "li")
		assert.NotContains(t, words, "bob")
		assert.NotContains(t, words, "io")
	})

	t.Run("deduplicates across inputs", func(t *testing.T) {
		t.Parallel()

		words := SplitInputs("archer", "archer@example.com")
		count := 0
		for _, w := range words {
			if w == "archer" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})
}

func TestPolicy_Rules(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()

	t.Run("accepts a strong password", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(policy.Rules("account.password", "k9#mQ!x27pLw@Zr4")...)
		assert.NoError(t, err)
	})

	t.Run("rejects short password with field error", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(policy.Rules("account.password", "a1!")...)
		assert.True(t, validator.IsValidationError(err))
		assert.True(t, validator.Extract(err).Has("account.password"))
	})

	t.Run("rejects weak password with strength message", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(policy.Rules("account.password", "aaaaaaaaaa")...)
		assert.True(t, validator.IsValidationError(err))
		msgs := validator.Extract(err).Get("account.password")
		assert.Contains(t, msgs, "is too easy to guess; avoid common words and parts of your name or email")
	})
}
