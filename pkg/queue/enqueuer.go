package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository stores new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer adds one-time tasks to the queue.
type Enqueuer struct {
	repo       EnqueuerRepository
	maxRetries int8
	now        func() time.Time
}

func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	e := &Enqueuer{
		repo:       repo,
		maxRetries: DefaultRetryPolicy().MaxAttempts,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue stores payload as a pending task named after its type and returns
// the task id.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal %T payload: %w", payload, err)
	}

	task := newTask(TaskTypeOneTime, TaskName(payload), body, e.now())
	task.MaxRetries = e.maxRetries
	for _, opt := range opts {
		opt(task)
	}
	if !task.Priority.Valid() {
		return uuid.Nil, ErrInvalidPriority
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("create task %s: %w", task.TaskName, err)
	}
	return task.ID, nil
}
