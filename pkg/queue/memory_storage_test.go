package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(scheduledFor time.Time) *Job {
	now := time.Now()
	return &Job{
		ID:           uuid.New(),
		TaskName:     "test.Job",
		Message:      []byte(`{}`),
		Status:       StatusPending,
		ScheduledFor: scheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryStorage_Claim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("future jobs are not claimed", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryStorage(DefaultBackoff())
		require.NoError(t, ms.CreateJob(ctx, newTestJob(time.Now().Add(time.Hour))))

		claimed, err := ms.Claim(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("due jobs are claimed and transition to processing", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryStorage(DefaultBackoff())
		job := newTestJob(time.Now().Add(-time.Second))
		require.NoError(t, ms.CreateJob(ctx, job))

		claimed, err := ms.Claim(ctx, 10)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, StatusProcessing, claimed[0].Status)

		// A second claim finds nothing.
		claimed, err = ms.Claim(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("ordering is scheduled_for then created_at", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryStorage(DefaultBackoff())
		now := time.Now()

		late := newTestJob(now.Add(-time.Minute))
		late.CreatedAt = now.Add(-time.Minute)
		early := newTestJob(now.Add(-2 * time.Minute))
		early.CreatedAt = now.Add(-time.Second)
		require.NoError(t, ms.CreateJob(ctx, late))
		require.NoError(t, ms.CreateJob(ctx, early))

		claimed, err := ms.Claim(ctx, 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, early.ID, claimed[0].ID)
	})

	t.Run("limit caps the batch", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryStorage(DefaultBackoff())
		for range 5 {
			require.NoError(t, ms.CreateJob(ctx, newTestJob(time.Now().Add(-time.Second))))
		}

		claimed, err := ms.Claim(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, claimed, 3)
	})

	t.Run("concurrent claims never hand out the same job twice", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryStorage(DefaultBackoff())
		const jobCount = 20
		for range jobCount {
			require.NoError(t, ms.CreateJob(ctx, newTestJob(time.Now().Add(-time.Second))))
		}

		var mu sync.Mutex
		seen := make(map[uuid.UUID]int)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := ms.Claim(ctx, 5)
				require.NoError(t, err)
				mu.Lock()
				for _, job := range claimed {
					seen[job.ID]++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		for id, count := range seen {
			assert.Equal(t, 1, count, "job %s claimed %d times", id, count)
		}
	})
}

func TestMemoryStorage_Fail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("failure reschedules with strictly increasing delay", func(t *testing.T) {
		t.Parallel()

		backoff := Backoff{Base: time.Minute, Cap: time.Hour, MaxAttempts: 5}
		ms := NewMemoryStorage(backoff)
		job := newTestJob(time.Now().Add(-time.Second))
		require.NoError(t, ms.CreateJob(ctx, job))

		var prev time.Time
		for attempt := range 3 {
			claimed, err := ms.Claim(ctx, 1)
			require.NoError(t, err)
			require.Len(t, claimed, 1, "attempt %d", attempt)

			require.NoError(t, ms.Fail(ctx, job.ID, "downstream unavailable"))

			stored, ok := ms.GetJob(job.ID)
			require.True(t, ok)
			assert.Equal(t, StatusPending, stored.Status)
			assert.Equal(t, int32(attempt+1), stored.FailedAttempts)
			require.NotNil(t, stored.LastError)
			assert.Equal(t, "downstream unavailable", *stored.LastError)
			assert.True(t, stored.ScheduledFor.After(prev))
			prev = stored.ScheduledFor

			// Pull the job back to due so the next iteration can claim it.
			ms.mu.Lock()
			ms.jobs[job.ID].ScheduledFor = time.Now().Add(-time.Second)
			ms.mu.Unlock()
		}
	})

	t.Run("job becomes terminal failed at max attempts", func(t *testing.T) {
		t.Parallel()

		backoff := Backoff{Base: time.Millisecond, Cap: time.Millisecond, MaxAttempts: 2}
		ms := NewMemoryStorage(backoff)
		job := newTestJob(time.Now().Add(-time.Second))
		require.NoError(t, ms.CreateJob(ctx, job))

		for range 2 {
			ms.mu.Lock()
			ms.jobs[job.ID].ScheduledFor = time.Now().Add(-time.Second)
			ms.mu.Unlock()

			claimed, err := ms.Claim(ctx, 1)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			require.NoError(t, ms.Fail(ctx, job.ID, "still broken"))
		}

		stored, ok := ms.GetJob(job.ID)
		require.True(t, ok)
		assert.Equal(t, StatusFailed, stored.Status)
		assert.Equal(t, int32(2), stored.FailedAttempts)

		// Terminal jobs are never reclaimed.
		claimed, err := ms.Claim(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("failing a non-processing job is rejected", func(t *testing.T) {
		t.Parallel()

		ms := NewMemoryStorage(DefaultBackoff())
		job := newTestJob(time.Now())
		require.NoError(t, ms.CreateJob(ctx, job))

		assert.ErrorIs(t, ms.Fail(ctx, job.ID, "boom"), ErrJobNotProcessing)
		assert.ErrorIs(t, ms.Fail(ctx, uuid.New(), "boom"), ErrJobNotFound)
	})
}

func TestMemoryStorage_MarkDone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := NewMemoryStorage(DefaultBackoff())
	job := newTestJob(time.Now().Add(-time.Second))
	require.NoError(t, ms.CreateJob(ctx, job))

	_, err := ms.Claim(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, ms.MarkDone(ctx, job.ID))

	stored, ok := ms.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusDone, stored.Status)

	assert.ErrorIs(t, ms.MarkDone(ctx, job.ID), ErrJobNotProcessing)
	assert.ErrorIs(t, ms.MarkDone(ctx, uuid.New()), ErrJobNotFound)
}

func TestMemoryStorage_ReleaseStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := NewMemoryStorage(DefaultBackoff())
	job := newTestJob(time.Now().Add(-time.Second))
	require.NoError(t, ms.CreateJob(ctx, job))

	_, err := ms.Claim(ctx, 1)
	require.NoError(t, err)

	// Age the claim past the cutoff.
	ms.mu.Lock()
	ms.jobs[job.ID].UpdatedAt = time.Now().Add(-time.Hour)
	ms.mu.Unlock()

	released, err := ms.ReleaseStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	stored, ok := ms.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestMemoryStorage_DeleteDone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ms := NewMemoryStorage(DefaultBackoff())

	old := newTestJob(time.Now().Add(-time.Second))
	old.Status = StatusDone
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	recent := newTestJob(time.Now().Add(-time.Second))
	recent.Status = StatusDone
	pending := newTestJob(time.Now().Add(-time.Second))
	require.NoError(t, ms.CreateJob(ctx, old))
	require.NoError(t, ms.CreateJob(ctx, recent))
	require.NoError(t, ms.CreateJob(ctx, pending))

	deleted, err := ms.DeleteDone(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, ok := ms.GetJob(old.ID)
	assert.False(t, ok)

	// Recently completed and non-done jobs survive the sweep.
	_, ok = ms.GetJob(recent.ID)
	assert.True(t, ok)
	_, ok = ms.GetJob(pending.ID)
	assert.True(t, ok)
}

func TestBackoff_Delay(t *testing.T) {
	t.Parallel()

	b := Backoff{Base: 30 * time.Second, Cap: 30 * time.Minute, MaxAttempts: 5}

	assert.Equal(t, 30*time.Second, b.Delay(0))
	assert.Equal(t, time.Minute, b.Delay(1))
	assert.Equal(t, 2*time.Minute, b.Delay(2))
	assert.Equal(t, 16*time.Minute, b.Delay(5))
	// Capped from here on.
	assert.Equal(t, 30*time.Minute, b.Delay(6))
	assert.Equal(t, 30*time.Minute, b.Delay(20))
}
