package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the queue every task is stored in.
const DefaultQueueName = "default"

type TaskType string

const (
	TaskTypeOneTime  TaskType = "one-time"
	TaskTypePeriodic TaskType = "periodic"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusDiscarded  TaskStatus = "discarded"
)

// Priority orders claimable tasks, higher first. Valid values are 0..100.
type Priority int8

const (
	// PriorityMaintenance is for sweeps and cache warming.
	PriorityMaintenance Priority = 10
	// PriorityExport is for tenant data exports, which may run for minutes.
	PriorityExport  Priority = 25
	PriorityDefault Priority = 50
	// PriorityMail is for user-facing notifications such as invitations.
	PriorityMail Priority = 75
)

func (p Priority) Valid() bool {
	return p >= 0 && p <= 100
}

// Task is a stored unit of work. RetryCount counts failed attempts.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskType    TaskType   `json:"task_type"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// newTask returns a pending task on the default queue due at now.
func newTask(kind TaskType, name string, payload []byte, now time.Time) *Task {
	return &Task{
		ID:          uuid.New(),
		Queue:       DefaultQueueName,
		TaskType:    kind,
		TaskName:    name,
		Payload:     payload,
		Status:      TaskStatusPending,
		Priority:    PriorityDefault,
		MaxRetries:  DefaultRetryPolicy().MaxAttempts,
		ScheduledAt: now,
		CreatedAt:   now,
	}
}

// DeadLetter keeps the last state of a task that failed for good, e.g. an
// export whose tenant was deleted or a reminder that bounced every attempt.
type DeadLetter struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskType   TaskType  `json:"task_type"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Priority   Priority  `json:"priority"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
}
