package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/telemetry"
)

// WorkerRepository defines the storage operations a worker needs.
type WorkerRepository interface {
	// ClaimTask atomically claims the next due task.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// DiscardTask finishes a task whose error is permanent.
	DiscardTask(ctx context.Context, taskID uuid.UUID, reason string) error

	// FailTask records the error, increments the retry count and reschedules
	// the task at retryAt while attempts remain.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error

	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error

	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error
}

// Worker claims tasks and dispatches them to registered handlers.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex

	pullInterval time.Duration
	lockTimeout  time.Duration
	retry        RetryPolicy
	metrics      *telemetry.Collector
	log          *slog.Logger
	now          func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	w := &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       []string{DefaultQueueName},
		workerID:     uuid.New(),
		sem:          make(chan struct{}, 1),
		pullInterval: 5 * time.Second,
		lockTimeout:  5 * time.Minute,
		retry:        DefaultRetryPolicy(),
		log:          logger.Discard(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(logger.Component("queue"))
	return w, nil
}

// RegisterHandlers adds handlers keyed by their task name.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, h := range handlers {
		if h == nil {
			continue
		}
		if _, ok := w.handlers[h.Name()]; ok {
			return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, h.Name())
		}
		w.handlers[h.Name()] = h
	}
	return nil
}

// Start begins processing tasks in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	w.log.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))
	return nil
}

// Stop cancels polling and waits for in-flight tasks.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerStopped
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()

	w.log.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run starts the worker and returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if _, err := w.ProcessNext(w.ctx); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.log.Error("failed to process task",
							slog.String("worker_id", w.workerID.String()),
							logger.Error(err))
					}
				}()
			default:
			}
		}
	}
}

// ProcessNext claims and runs a single task. It reports whether a task was claimed.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	task, err := w.repo.ClaimTask(ctx, w.workerID, w.queues, w.lockTimeout)
	if errors.Is(err, ErrNoTaskToClaim) || (err == nil && task == nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim task: %w", err)
	}

	// Bookkeeping must survive worker shutdown.
	return true, w.process(context.WithoutCancel(ctx), task)
}

func (w *Worker) process(ctx context.Context, task *Task) error {
	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(ctx, task)
	}

	start := w.now()
	execErr := w.execute(handler, task)
	duration := time.Since(start)

	switch {
	case execErr == nil:
		return w.handleSuccess(ctx, task, duration)
	case IsPermanent(execErr):
		return w.handleDiscard(ctx, task, execErr, duration)
	default:
		return w.handleFailure(ctx, task, execErr, duration)
	}
}

// execute runs the handler with its own deadline so graceful shutdown lets it finish.
func (w *Worker) execute(handler Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	return handler.Handle(ctx, task.Payload)
}

// handleMissingHandler sends the task straight to the DLQ; retrying cannot help.
func (w *Worker) handleMissingHandler(ctx context.Context, task *Task) error {
	w.log.ErrorContext(ctx, "no handler registered for task",
		logger.TaskID(task.ID),
		slog.String("task_name", task.TaskName))

	msg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.FailTask(ctx, task.ID, msg, w.now()); err != nil {
		return fmt.Errorf("failed to mark task %s as failed: %w", task.ID, err)
	}
	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}

	w.metrics.JobRun(task.TaskName, telemetry.OutcomeFailed, 0)
	return ErrHandlerNotFound
}

func (w *Worker) handleDiscard(ctx context.Context, task *Task, execErr error, d time.Duration) error {
	w.log.WarnContext(ctx, "task discarded",
		logger.TaskID(task.ID),
		slog.String("task_name", task.TaskName),
		logger.Duration(d),
		logger.Error(execErr))

	if err := w.repo.DiscardTask(ctx, task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("failed to discard task %s: %w", task.ID, err)
	}
	w.metrics.JobRun(task.TaskName, telemetry.OutcomeDiscard, d)
	return nil
}

// handleFailure reschedules the task with backoff, or moves it to the DLQ once
// the attempt limit is reached.
func (w *Worker) handleFailure(ctx context.Context, task *Task, execErr error, d time.Duration) error {
	attempt := int(task.RetryCount) + 1
	retryAt := w.now().Add(w.retry.Backoff(attempt))
	exhausted := attempt >= int(task.MaxRetries)

	level := slog.LevelWarn
	if exhausted {
		level = slog.LevelError
	}
	w.log.Log(ctx, level, "task failed",
		logger.TaskID(task.ID),
		slog.String("task_name", task.TaskName),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", int(task.MaxRetries)),
		logger.Duration(d),
		logger.Error(execErr))

	if err := w.repo.FailTask(ctx, task.ID, execErr.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	if !exhausted {
		w.metrics.JobRun(task.TaskName, telemetry.OutcomeRetry, d)
		return nil
	}

	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ after max retries: %w", task.ID, err)
	}
	w.metrics.JobRun(task.TaskName, telemetry.OutcomeFailed, d)
	return nil
}

func (w *Worker) handleSuccess(ctx context.Context, task *Task, d time.Duration) error {
	if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.log.DebugContext(ctx, "task completed",
		logger.TaskID(task.ID),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		logger.Duration(d))
	w.metrics.JobRun(task.TaskName, telemetry.OutcomeOK, d)
	return nil
}

// ExtendLock extends the lock of a long-running task.
func (w *Worker) ExtendLock(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, taskID, extension)
}
