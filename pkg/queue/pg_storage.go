package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PGStorage.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStorage implements every queue repository on PostgreSQL.
// Claims use FOR UPDATE SKIP LOCKED so workers never block each other.
type PGStorage struct {
	db DB
}

func NewPGStorage(db DB) *PGStorage {
	return &PGStorage{db: db}
}

const taskColumns = `id, queue, task_type, task_name, payload, status, priority, retry_count,
	max_retries, scheduled_at, locked_until, locked_by, processed_at, error, created_at`

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t                     Task
		priority, retry, maxR int16
	)
	err := row.Scan(&t.ID, &t.Queue, &t.TaskType, &t.TaskName, &t.Payload, &t.Status, &priority, &retry,
		&maxR, &t.ScheduledAt, &t.LockedUntil, &t.LockedBy, &t.ProcessedAt, &t.Error, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Priority = Priority(priority)
	t.RetryCount = int8(retry)
	t.MaxRetries = int8(maxR)
	return &t, nil
}

func (s *PGStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (id, queue, task_type, task_name, payload, status, priority, retry_count,
			max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.Queue, task.TaskType, task.TaskName, nullJSON(task.Payload), task.Status,
		int16(task.Priority), int16(task.RetryCount), int16(task.MaxRetries), task.ScheduledAt, task.CreatedAt,
	)
	return err
}

func (s *PGStorage) GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE task_name = $1 AND status = 'pending'
		ORDER BY scheduled_at LIMIT 1`, taskName))
	if pg.IsNotFoundError(err) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// ClaimTask locks the next due task. Tasks abandoned by a crashed worker are
// reclaimed once their lock expires.
func (s *PGStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	t, err := scanTask(s.db.QueryRow(ctx, `
		UPDATE tasks SET status = 'processing', locked_by = $1, locked_until = $3
		WHERE id = (
			SELECT id FROM tasks
			WHERE queue = ANY($2)
			  AND ((status = 'pending' AND scheduled_at <= now())
			    OR (status = 'processing' AND locked_until < now()))
			ORDER BY priority DESC, scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+taskColumns, workerID, queues, time.Now().Add(lockDuration)))
	if pg.IsNotFoundError(err) {
		return nil, ErrNoTaskToClaim
	}
	return t, err
}

func (s *PGStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return s.finish(ctx, taskID, TaskStatusCompleted, nil)
}

func (s *PGStorage) DiscardTask(ctx context.Context, taskID uuid.UUID, reason string) error {
	return s.finish(ctx, taskID, TaskStatusDiscarded, &reason)
}

func (s *PGStorage) finish(ctx context.Context, taskID uuid.UUID, status TaskStatus, reason *string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET status = $2, processed_at = now(), locked_until = NULL, locked_by = NULL,
			error = COALESCE($3, error)
		WHERE id = $1 AND status = 'processing'`, taskID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotProcessing
	}
	return nil
}

func (s *PGStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET
			retry_count = retry_count + 1,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at ELSE $3 END
		WHERE id = $1 AND status = 'processing'`, taskID, errorMsg, retryAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotProcessing
	}
	return nil
}

func (s *PGStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	return pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO tasks_dlq (id, task_id, queue, task_type, task_name, payload, priority, error, retry_count, failed_at)
			SELECT $2, id, queue, task_type, task_name, payload, priority, COALESCE(error, ''), retry_count, now()
			FROM tasks WHERE id = $1`, taskID, uuid.New())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrTaskNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
		return err
	})
}

func (s *PGStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET locked_until = $2
		WHERE id = $1 AND status = 'processing'`, taskID, time.Now().Add(duration))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotProcessing
	}
	return nil
}

// PurgeFinished deletes completed and discarded tasks processed before cutoff.
func (s *PGStorage) PurgeFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM tasks WHERE status IN ('completed', 'discarded') AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeadLetters lists the newest dead letters first.
func (s *PGStorage) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, task_id, queue, task_type, task_name, payload, priority, error, retry_count, failed_at
		FROM tasks_dlq ORDER BY failed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var (
			d               DeadLetter
			priority, retry int16
		)
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Queue, &d.TaskType, &d.TaskName, &d.Payload,
			&priority, &d.Error, &retry, &d.FailedAt); err != nil {
			return nil, err
		}
		d.Priority = Priority(priority)
		d.RetryCount = int8(retry)
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

