package queue

import "time"

// Config holds the queue tuning knobs loaded from the environment.
type Config struct {
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	BatchSize       int           `env:"QUEUE_BATCH_SIZE" envDefault:"10"`
	MaxConcurrent   int           `env:"QUEUE_MAX_CONCURRENT" envDefault:"10"`
	JobTimeout      time.Duration `env:"QUEUE_JOB_TIMEOUT" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DoneRetention   time.Duration `env:"QUEUE_DONE_RETENTION" envDefault:"24h"`

	MaxAttempts int32         `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`
	BackoffBase time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"30s"`
	BackoffCap  time.Duration `env:"QUEUE_BACKOFF_CAP" envDefault:"30m"`
}

// BackoffPolicy builds the retry policy from the configured values.
func (c Config) BackoffPolicy() Backoff {
	return Backoff{
		Base:        c.BackoffBase,
		Cap:         c.BackoffCap,
		MaxAttempts: c.MaxAttempts,
	}
}
