package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the queue storage interfaces in memory for tests
// and local development. All transitions happen under one mutex, matching
// the atomicity the Postgres storage gets from conditional updates.
type MemoryStorage struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*Job
	backoff Backoff
}

// NewMemoryStorage creates an in-memory queue storage with the given retry
// policy.
func NewMemoryStorage(backoff Backoff) *MemoryStorage {
	return &MemoryStorage{
		jobs:    make(map[uuid.UUID]*Job),
		backoff: backoff,
	}
}

func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *job
	ms.jobs[job.ID] = &cp
	return nil
}

// Claim transitions up to limit due pending jobs to processing and returns
// them, ordered by scheduled_for then creation time.
func (ms *MemoryStorage) Claim(ctx context.Context, limit int) ([]*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var due []*Job
	for _, job := range ms.jobs {
		if job.Status == StatusPending && !job.ScheduledFor.After(now) {
			due = append(due, job)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(due[j].ScheduledFor)
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*Job, 0, len(due))
	for _, job := range due {
		job.Status = StatusProcessing
		job.UpdatedAt = now
		cp := *job
		claimed = append(claimed, &cp)
	}

	return claimed, nil
}

func (ms *MemoryStorage) MarkDone(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusProcessing {
		return ErrJobNotProcessing
	}

	job.Status = StatusDone
	job.UpdatedAt = time.Now()
	return nil
}

// Fail increments the attempt counter and either reschedules the job with
// backoff or, at the attempt limit, parks it in the terminal failed state.
func (ms *MemoryStorage) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status != StatusProcessing {
		return ErrJobNotProcessing
	}

	now := time.Now()
	delay := ms.backoff.Delay(job.FailedAttempts)
	job.FailedAttempts++
	job.LastError = &errMsg
	job.UpdatedAt = now

	if job.FailedAttempts >= ms.backoff.MaxAttempts {
		job.Status = StatusFailed
		return nil
	}

	job.Status = StatusPending
	job.ScheduledFor = now.Add(delay)
	return nil
}

func (ms *MemoryStorage) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var released int64
	for _, job := range ms.jobs {
		if job.Status == StatusProcessing && job.UpdatedAt.Before(cutoff) {
			job.Status = StatusPending
			job.UpdatedAt = time.Now()
			released++
		}
	}
	return released, nil
}

// DeleteDone removes completed jobs older than the retention window.
func (ms *MemoryStorage) DeleteDone(ctx context.Context, retention time.Duration) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	var deleted int64
	for id, job := range ms.jobs {
		if job.Status == StatusDone && job.UpdatedAt.Before(cutoff) {
			delete(ms.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// GetJob returns a copy of the job, for assertions in tests.
func (ms *MemoryStorage) GetJob(jobID uuid.UUID) (*Job, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Jobs returns copies of all stored jobs, for assertions in tests.
func (ms *MemoryStorage) Jobs() []*Job {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]*Job, 0, len(ms.jobs))
	for _, job := range ms.jobs {
		cp := *job
		out = append(out, &cp)
	}
	return out
}
