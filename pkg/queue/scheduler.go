package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// SchedulerRepository is the storage a Scheduler needs.
type SchedulerRepository interface {
	CreateTask(ctx context.Context, task *Task) error

	// GetPendingTaskByName returns ErrTaskNotFound when no pending task has that name.
	GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error)
}

// Scheduler keeps one pending task per registered payload, due at the next
// run of its schedule. Periodic tasks are named after their payload type like
// enqueued ones, so the same NewTaskHandler runs both. Several schedulers may
// share one storage.
type Scheduler struct {
	repo     SchedulerRepository
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	payload  []byte
	schedule Schedule
	priority Priority
}

type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often missing periodic tasks are created.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	s := &Scheduler{
		repo:     repo,
		interval: 30 * time.Second,
		log:      logger.Discard(),
		now:      time.Now,
		entries:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("scheduler"))
	return s, nil
}

// Add registers payload to run on schedule at priority p. A payload type can
// be registered once.
func (s *Scheduler) Add(payload any, schedule Schedule, p Priority) error {
	if payload == nil {
		return ErrPayloadNil
	}
	if !p.Valid() {
		return ErrInvalidPriority
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %T payload: %w", payload, err)
	}
	name := TaskName(payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, name)
	}
	s.entries[name] = entry{payload: body, schedule: schedule, priority: p}

	s.log.Info("periodic task registered",
		slog.String("task_name", name),
		slog.String("schedule", schedule.String()))
	return nil
}

// Names returns the registered task names, sorted.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entries))
}

// Start runs Tick every check interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.Names()) == 0 {
		return ErrSchedulerEmpty
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick creates the next task of every entry that has none pending.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.RLock()
	entries := maps.Clone(s.entries)
	s.mu.RUnlock()

	now := s.now()
	for name, e := range entries {
		if err := s.ensure(ctx, name, e, now); err != nil {
			s.log.ErrorContext(ctx, "failed to schedule periodic task",
				slog.String("task_name", name),
				logger.Error(err))
		}
	}
}

func (s *Scheduler) ensure(ctx context.Context, name string, e entry, now time.Time) error {
	_, err := s.repo.GetPendingTaskByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrTaskNotFound) {
		return fmt.Errorf("look up pending task: %w", err)
	}

	task := newTask(TaskTypePeriodic, name, e.payload, now)
	task.Priority = e.priority
	task.ScheduledAt = e.schedule.Next(now)
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create periodic task: %w", err)
	}

	s.log.DebugContext(ctx, "periodic task created",
		slog.String("task_name", name),
		slog.Time("scheduled_for", task.ScheduledAt))
	return nil
}
