package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, store *MemoryStore, email string) *Account {
	t.Helper()
	acc := &Account{ID: uuid.New(), Email: email, Name: "Seed"}
	require.NoError(t, store.CreateAccount(context.Background(), acc))
	return acc
}

func TestMemoryStore_CreateAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("duplicate email is rejected regardless of case", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		seedAccount(t, store, "dupe@example.com")

		err := store.CreateAccount(ctx, &Account{ID: uuid.New(), Email: "DUPE@Example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("timestamps are set on creation", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		acc := seedAccount(t, store, "fresh@example.com")
		assert.False(t, acc.CreatedAt.IsZero())
		assert.Equal(t, acc.CreatedAt, acc.UpdatedAt)
	})
}

func TestMemoryStore_Updates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("every write advances updated_at", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		acc := seedAccount(t, store, "touch@example.com")
		created := acc.UpdatedAt

		require.NoError(t, store.MarkVerified(ctx, acc.ID))
		afterVerify, err := store.GetAccountByID(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, afterVerify.Verified)
		assert.False(t, afterVerify.UpdatedAt.Before(created))

		require.NoError(t, store.TouchLastLogin(ctx, acc.ID))
		afterLogin, err := store.GetAccountByID(ctx, acc.ID)
		require.NoError(t, err)
		require.NotNil(t, afterLogin.LastLoginAt)
		assert.False(t, afterLogin.UpdatedAt.Before(afterVerify.UpdatedAt))
	})

	t.Run("updates against an unknown account fail", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		missing := uuid.New()

		assert.ErrorIs(t, store.MarkVerified(ctx, missing), ErrAccountNotFound)
		assert.ErrorIs(t, store.UpdatePassword(ctx, missing, "digest"), ErrAccountNotFound)
		assert.ErrorIs(t, store.TouchLastLogin(ctx, missing), ErrAccountNotFound)
	})
}

func TestMemoryStore_LinkIdentity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("relink by the same account refreshes the profile", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		acc := seedAccount(t, store, "link@example.com")

		first := &Identity{
			ID:           uuid.New(),
			AccountID:    acc.ID,
			Provider:     "github",
			Username:     "linker",
			Name:         "Original",
			RefreshToken: "rt-1",
		}
		require.NoError(t, store.LinkIdentity(ctx, first))

		again := &Identity{
			ID:           uuid.New(),
			AccountID:    acc.ID,
			Provider:     "github",
			Username:     "Linker",
			Name:         "Renamed",
			RefreshToken: "rt-2",
		}
		require.NoError(t, store.LinkIdentity(ctx, again))

		// The original row survives with refreshed profile fields.
		assert.Equal(t, first.ID, again.ID)
		stored, ok := store.GetIdentity("github", "linker")
		require.True(t, ok)
		assert.Equal(t, "Renamed", stored.Name)
		assert.Equal(t, "rt-2", stored.RefreshToken)
		assert.Equal(t, first.CreatedAt, stored.CreatedAt)
	})

	t.Run("identity owned by another account is refused", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		owner := seedAccount(t, store, "owner@example.com")
		other := seedAccount(t, store, "other@example.com")

		require.NoError(t, store.LinkIdentity(ctx, &Identity{
			ID:        uuid.New(),
			AccountID: owner.ID,
			Provider:  "google",
			Username:  "shared@example.com",
		}))

		err := store.LinkIdentity(ctx, &Identity{
			ID:        uuid.New(),
			AccountID: other.ID,
			Provider:  "google",
			Username:  "SHARED@example.com",
		})
		assert.ErrorIs(t, err, ErrIdentityTaken)
	})

	t.Run("same username under a different provider is a separate identity", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		owner := seedAccount(t, store, "multi@example.com")
		other := seedAccount(t, store, "second@example.com")

		require.NoError(t, store.LinkIdentity(ctx, &Identity{
			ID:        uuid.New(),
			AccountID: owner.ID,
			Provider:  "github",
			Username:  "sameuser",
		}))
		require.NoError(t, store.LinkIdentity(ctx, &Identity{
			ID:        uuid.New(),
			AccountID: other.ID,
			Provider:  "google",
			Username:  "sameuser",
		}))

		found, err := store.FindByIdentity(ctx, "github", "sameuser")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, found.ID)

		found, err = store.FindByIdentity(ctx, "google", "sameuser")
		require.NoError(t, err)
		assert.Equal(t, other.ID, found.ID)
	})

	t.Run("linking to an unknown account fails", func(t *testing.T) {
		t.Parallel()

		store := NewMemoryStore()
		err := store.LinkIdentity(ctx, &Identity{
			ID:        uuid.New(),
			AccountID: uuid.New(),
			Provider:  "github",
			Username:  "nobody",
		})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}
