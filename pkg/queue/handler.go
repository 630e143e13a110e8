package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Handler executes one kind of job. Name must match the TaskName jobs are
// enqueued with; the registry of handlers forms the closed set of job kinds
// the worker can dispatch.
type Handler interface {
	Name() string
	Handle(ctx context.Context, message json.RawMessage) error
}

// JobHandlerFunc processes a decoded payload of type T.
type JobHandlerFunc[T any] func(ctx context.Context, payload T) error

// NewJobHandler wraps a typed function as a Handler. The task name is
// derived from the payload type, so enqueueing a value of T and registering
// a handler for T line up without string constants.
func NewJobHandler[T any](fn JobHandlerFunc[T]) Handler {
	var payload T
	return &jobHandler[T]{
		name: qualifiedStructName(payload),
		fn:   fn,
	}
}

type jobHandler[T any] struct {
	name string
	fn   JobHandlerFunc[T]
}

func (h *jobHandler[T]) Name() string {
	return h.name
}

func (h *jobHandler[T]) Handle(ctx context.Context, message json.RawMessage) error {
	var payload T
	if err := json.Unmarshal(message, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", h.name, err)
	}
	return h.fn(ctx, payload)
}

func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
