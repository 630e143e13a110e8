package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_IssueAndRedeem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		svc := NewService(NewMemoryStore())
		accountID := uuid.New()

		value, err := svc.Issue(ctx, accountID, PurposeVerifyEmail, time.Hour)
		require.NoError(t, err)
		assert.NotEmpty(t, value)

		got, err := svc.Redeem(ctx, value, PurposeVerifyEmail)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("second redemption fails with AlreadyConsumed", func(t *testing.T) {
		t.Parallel()

		svc := NewService(NewMemoryStore())
		accountID := uuid.New()

		value, err := svc.Issue(ctx, accountID, PurposeResetPassword, time.Hour)
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, value, PurposeResetPassword)
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, value, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrTokenAlreadyConsumed)
	})

	t.Run("unknown value fails with NotFound", func(t *testing.T) {
		t.Parallel()

		svc := NewService(NewMemoryStore())
		_, err := svc.Redeem(ctx, "never-issued", PurposeVerifyEmail)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("expired token fails with Expired", func(t *testing.T) {
		t.Parallel()

		svc := NewService(NewMemoryStore())
		value, err := svc.Issue(ctx, uuid.New(), PurposeVerifyEmail, -time.Minute)
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, value, PurposeVerifyEmail)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("purpose is part of the lookup key", func(t *testing.T) {
		t.Parallel()

		svc := NewService(NewMemoryStore())
		accountID := uuid.New()

		value, err := svc.Issue(ctx, accountID, PurposeVerifyEmail, time.Hour)
		require.NoError(t, err)

		_, err = svc.Redeem(ctx, value, PurposeResetPassword)
		assert.ErrorIs(t, err, ErrTokenNotFound)

		// The verify-email redemption still works afterwards.
		got, err := svc.Redeem(ctx, value, PurposeVerifyEmail)
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("issued values are unique and URL safe", func(t *testing.T) {
		t.Parallel()

		svc := NewService(NewMemoryStore())
		seen := make(map[string]bool)
		for range 50 {
			value, err := svc.Issue(ctx, uuid.New(), PurposeVerifyEmail, time.Hour)
			require.NoError(t, err)
			assert.False(t, seen[value])
			assert.NotContains(t, value, "+")
			assert.NotContains(t, value, "/")
			assert.NotContains(t, value, "=")
			seen[value] = true
		}
	})
}

func TestService_PurgeExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(NewMemoryStore())
	accountID := uuid.New()

	stale, err := svc.Issue(ctx, uuid.New(), PurposeVerifyEmail, -2*time.Hour)
	require.NoError(t, err)
	live, err := svc.Issue(ctx, accountID, PurposeVerifyEmail, time.Hour)
	require.NoError(t, err)

	purged, err := svc.PurgeExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// The stale token is gone; the live one still redeems.
	_, err = svc.Redeem(ctx, stale, PurposeVerifyEmail)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	got, err := svc.Redeem(ctx, live, PurposeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)
}

func TestService_ConcurrentRedemption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(NewMemoryStore())
	accountID := uuid.New()

	value, err := svc.Issue(ctx, accountID, PurposeResetPassword, time.Hour)
	require.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = svc.Redeem(ctx, value, PurposeResetPassword)
		}()
	}
	wg.Wait()

	var successes, consumed int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, ErrTokenAlreadyConsumed)
			consumed++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, consumed)
}
