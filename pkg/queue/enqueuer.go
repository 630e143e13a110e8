package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerStorage is the storage seam for job creation.
type EnqueuerStorage interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer inserts jobs into the queue.
type Enqueuer struct {
	storage EnqueuerStorage
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(storage EnqueuerStorage) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	return &Enqueuer{storage: storage}, nil
}

// EnqueueOption adjusts a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	delay        time.Duration
	scheduledFor *time.Time
	taskName     string
}

// WithDelay schedules the job no earlier than now+delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithScheduledFor schedules the job for a specific earliest dispatch time.
func WithScheduledFor(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledFor = &t
	}
}

// WithTaskName overrides the task name derived from the payload type.
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

// Enqueue serializes the payload and stores a pending job. The payload type
// determines which handler the worker dispatches to.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{}
	for _, opt := range opts {
		opt(options)
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %T: %v", ErrPayloadMarshal, payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = qualifiedStructName(payload)
	}

	now := time.Now()
	scheduledFor := now
	if options.scheduledFor != nil {
		scheduledFor = *options.scheduledFor
	} else if options.delay > 0 {
		scheduledFor = now.Add(options.delay)
	}

	job := &Job{
		ID:           uuid.New(),
		TaskName:     taskName,
		Message:      message,
		Status:       StatusPending,
		ScheduledFor: scheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.storage.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to create job %q: %w", taskName, err)
	}

	return nil
}
