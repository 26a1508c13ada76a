package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements every queue repository in memory.
// It is used by tests and single-process development setups.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	dlq   []DeadLetter
	now   func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[uuid.UUID]*Task),
		now:   time.Now,
	}
}

func (ms *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}
	cp := *task
	ms.tasks[task.ID] = &cp
	return nil
}

func (ms *MemoryStorage) GetPendingTaskByName(_ context.Context, taskName string) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, t := range ms.tasks {
		if t.TaskName == taskName && t.Status == TaskStatusPending {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrTaskNotFound
}

// ClaimTask picks the highest priority due task, oldest first within a priority.
// Tasks whose lock expired are claimable again.
func (ms *MemoryStorage) ClaimTask(_ context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Task
	for _, t := range ms.tasks {
		if !slices.Contains(queues, t.Queue) {
			continue
		}
		switch t.Status {
		case TaskStatusPending:
			if t.ScheduledAt.After(now) {
				continue
			}
		case TaskStatusProcessing:
			if t.LockedUntil == nil || t.LockedUntil.After(now) {
				continue
			}
		default:
			continue
		}

		if best == nil || t.Priority > best.Priority ||
			(t.Priority == best.Priority && t.ScheduledAt.Before(best.ScheduledAt)) {
			best = t
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	cp := *best
	return &cp, nil
}

func (ms *MemoryStorage) CompleteTask(_ context.Context, taskID uuid.UUID) error {
	return ms.finish(taskID, TaskStatusCompleted, nil)
}

// DiscardTask finishes a task that must not be retried.
func (ms *MemoryStorage) DiscardTask(_ context.Context, taskID uuid.UUID, reason string) error {
	return ms.finish(taskID, TaskStatusDiscarded, &reason)
}

func (ms *MemoryStorage) finish(taskID uuid.UUID, status TaskStatus, reason *string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	t, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	now := ms.now()
	t.Status = status
	t.ProcessedAt = &now
	t.LockedUntil = nil
	t.LockedBy = nil
	if reason != nil {
		t.Error = reason
	}
	return nil
}

// FailTask records the error and increments RetryCount. The task becomes
// claimable at retryAt unless it reached MaxRetries.
func (ms *MemoryStorage) FailTask(_ context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	t, err := ms.processing(taskID)
	if err != nil {
		return err
	}

	t.RetryCount++
	t.Error = &errorMsg
	t.LockedUntil = nil
	t.LockedBy = nil

	if t.RetryCount >= t.MaxRetries {
		t.Status = TaskStatusFailed
		return nil
	}
	t.Status = TaskStatusPending
	t.ScheduledAt = retryAt
	return nil
}

func (ms *MemoryStorage) MoveToDLQ(_ context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	t, ok := ms.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}

	dl := DeadLetter{
		ID:         uuid.New(),
		TaskID:     t.ID,
		Queue:      t.Queue,
		TaskType:   t.TaskType,
		TaskName:   t.TaskName,
		Payload:    t.Payload,
		Priority:   t.Priority,
		RetryCount: t.RetryCount,
		FailedAt:   ms.now(),
	}
	if t.Error != nil {
		dl.Error = *t.Error
	}

	ms.dlq = append(ms.dlq, dl)
	delete(ms.tasks, taskID)
	return nil
}

func (ms *MemoryStorage) ExtendLock(_ context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	t, err := ms.processing(taskID)
	if err != nil {
		return err
	}
	lockUntil := ms.now().Add(duration)
	t.LockedUntil = &lockUntil
	return nil
}

// Task returns a copy of the stored task.
func (ms *MemoryStorage) Task(taskID uuid.UUID) (Task, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	t, ok := ms.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// DeadLetters returns a copy of the dead letter queue.
func (ms *MemoryStorage) DeadLetters() []DeadLetter {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return slices.Clone(ms.dlq)
}

func (ms *MemoryStorage) processing(taskID uuid.UUID) (*Task, error) {
	t, ok := ms.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.Status != TaskStatusProcessing {
		return nil, ErrTaskNotProcessing
	}
	return t, nil
}
