// Package queue implements a durable, polling-based job queue backed by a
// relational store. Jobs carry typed JSON payloads dispatched to registered
// handlers; failed jobs are retried with exponential backoff until a maximum
// attempt count moves them to a terminal failed state. Delivery is
// at-least-once: handlers must be idempotent or dedupe downstream.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job. The integer encoding is part of
// the storage schema.
type Status int32

const (
	StatusPending    Status = 0
	StatusProcessing Status = 1
	StatusDone       Status = 2
	StatusFailed     Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is a unit of deferred work. Message is the JSON encoding of a typed
// payload; TaskName selects the handler on the dispatch side.
type Job struct {
	ID             uuid.UUID       `json:"id"`
	TaskName       string          `json:"task_name"`
	Message        json.RawMessage `json:"message,omitempty"`
	Status         Status          `json:"status"`
	FailedAttempts int32           `json:"failed_attempts"`
	ScheduledFor   time.Time       `json:"scheduled_for"`
	LastError      *string         `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Backoff controls the retry policy applied when a job fails.
type Backoff struct {
	// Base is the delay after the first failure; each further failure
	// doubles it (Base × 2^attempts) until Cap.
	Base time.Duration
	// Cap bounds the computed delay.
	Cap time.Duration
	// MaxAttempts is the failure count at which a job becomes terminally
	// failed instead of being rescheduled.
	MaxAttempts int32
}

// DefaultBackoff returns the standard retry policy: 30s doubling to a 30m
// cap, terminal after 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        30 * time.Second,
		Cap:         30 * time.Minute,
		MaxAttempts: 5,
	}
}

// Delay computes the reschedule delay after the given number of failed
// attempts (the count before the increment for the current failure).
func (b Backoff) Delay(failedAttempts int32) time.Duration {
	d := b.Base
	for i := int32(0); i < failedAttempts; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}
