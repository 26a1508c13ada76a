package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxAttempts        int8          `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay     time.Duration `env:"QUEUE_RETRY_BASE_DELAY" envDefault:"10s"`
	RetryMaxDelay      time.Duration `env:"QUEUE_RETRY_MAX_DELAY" envDefault:"10m"`
	SchedulerInterval  time.Duration `env:"QUEUE_SCHEDULER_INTERVAL" envDefault:"30s"`
}

// RetryPolicy builds the policy described by the config.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: c.MaxAttempts, BaseDelay: c.RetryBaseDelay, MaxDelay: c.RetryMaxDelay}
}
