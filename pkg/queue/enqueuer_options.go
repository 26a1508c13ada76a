package queue

import "time"

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultMaxRetries sets the attempt limit of tasks enqueued without
// WithMaxRetries.
func WithDefaultMaxRetries(n int8) EnqueuerOption {
	return func(e *Enqueuer) {
		if validAttempts(n) {
			e.maxRetries = n
		}
	}
}

// EnqueueOption adjusts one task before it is stored.
type EnqueueOption func(*Task)

// WithPriority overrides PriorityDefault. Enqueue rejects values outside 0..100.
func WithPriority(p Priority) EnqueueOption {
	return func(t *Task) {
		t.Priority = p
	}
}

func WithMaxRetries(n int8) EnqueueOption {
	return func(t *Task) {
		if validAttempts(n) {
			t.MaxRetries = n
		}
	}
}

// WithDelay postpones the first attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(t *Task) {
		if d > 0 {
			t.ScheduledAt = t.ScheduledAt.Add(d)
		}
	}
}

// WithTaskName routes the task to a handler other than the one of its
// payload type.
func WithTaskName(name string) EnqueueOption {
	return func(t *Task) {
		if name != "" {
			t.TaskName = name
		}
	}
}

func validAttempts(n int8) bool {
	return n >= 0 && n <= 10
}
