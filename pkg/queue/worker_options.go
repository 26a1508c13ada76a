package queue

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/telemetry"
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPullInterval sets the pause between claims.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pullInterval = d
		}
	}
}

// WithLockTimeout sets how long a claimed task stays locked. It is also the
// handler deadline.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockTimeout = d
		}
	}
}

// WithMaxConcurrentTasks caps the handlers running at once.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.sem = make(chan struct{}, n)
		}
	}
}

func WithRetryPolicy(p RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.retry = p
	}
}

// WithWorkerTelemetry records the outcome and duration of every task.
func WithWorkerTelemetry(c *telemetry.Collector) WorkerOption {
	return func(w *Worker) {
		w.metrics = c
	}
}

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}
