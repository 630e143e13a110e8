package queue

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails.
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrNoHandlers is returned when the worker is started with no
	// registered handlers.
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrHandlerNotFound is returned when a claimed job names a task type
	// with no registered handler.
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrJobNotFound is returned by storage when the job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotProcessing is returned by storage when a completion or
	// failure transition targets a job that is not in the processing state.
	ErrJobNotProcessing = errors.New("job is not in processing state")
)
