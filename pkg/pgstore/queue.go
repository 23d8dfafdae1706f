package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/switchkit/pkg/pg"
	"github.com/dmitrymomot/switchkit/pkg/queue"
)

// QueueStorage is a durable queue backend. Workers on different nodes claim
// tasks with FOR UPDATE SKIP LOCKED so a task is handed to one worker at a time.
type QueueStorage struct {
	db      *pgxpool.Pool
	now     func() time.Time
	backoff time.Duration
}

var (
	_ queue.EnqueuerRepository = (*QueueStorage)(nil)
	_ queue.WorkerRepository   = (*QueueStorage)(nil)
)

// QueueOption configures a QueueStorage.
type QueueOption func(*QueueStorage)

// WithQueueClock overrides time.Now.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(s *QueueStorage) { s.now = now }
}

// WithQueueRetryBackoff sets the linear retry step. Attempt n waits n*d.
func WithQueueRetryBackoff(d time.Duration) QueueOption {
	return func(s *QueueStorage) { s.backoff = d }
}

// NewQueueStorage returns a queue storage using the pool.
func NewQueueStorage(pool *pgxpool.Pool, opts ...QueueOption) *QueueStorage {
	s := &QueueStorage{db: pool, now: time.Now, backoff: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QueueStorage) CreateTask(ctx context.Context, task *queue.Task) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO queue_tasks
			(id, queue, task_name, payload, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.Queue, task.TaskName, task.Payload, string(task.Status),
		int16(task.RetryCount), int16(task.MaxRetries), task.ScheduledAt, task.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("task with ID %s already exists", task.ID)
		}
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

// ClaimTask locks the oldest due task. Processing tasks whose lock expired are claimable again.
func (s *QueueStorage) ClaimTask(ctx context.Context, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	now := s.now()
	rows, err := s.db.Query(ctx, `
		UPDATE queue_tasks
		SET status = $3, locked_until = $4
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE queue = ANY($1)
			  AND scheduled_at <= $2
			  AND (status = $5 OR (status = $3 AND locked_until <= $2))
			ORDER BY scheduled_at, created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, queue, task_name, payload, status, retry_count, max_retries,
		          scheduled_at, locked_until, processed_at, error, created_at`,
		queues, now, string(queue.TaskStatusProcessing), now.Add(lockDuration), string(queue.TaskStatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, queue.ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

func (s *QueueStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_tasks
		SET status = $2, processed_at = $3, locked_until = NULL
		WHERE id = $1 AND status = $4`,
		taskID, string(queue.TaskStatusCompleted), s.now(), string(queue.TaskStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missing(ctx, taskID)
	}
	return nil
}

// FailTask records the error and reschedules the task, or marks it failed once
// retries are exhausted. It reports whether the task will be retried.
func (s *QueueStorage) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) (bool, error) {
	var status string
	err := s.db.QueryRow(ctx, `
		UPDATE queue_tasks
		SET error = $2,
		    locked_until = NULL,
		    status = CASE WHEN retry_count >= max_retries THEN $5 ELSE $6 END,
		    scheduled_at = CASE WHEN retry_count >= max_retries THEN scheduled_at
		                        ELSE $3::timestamptz + (retry_count + 1) * $4::interval END,
		    retry_count = CASE WHEN retry_count >= max_retries THEN retry_count ELSE retry_count + 1 END
		WHERE id = $1 AND status = $7
		RETURNING status`,
		taskID, errMsg, s.now(), s.backoff,
		string(queue.TaskStatusFailed), string(queue.TaskStatusPending), string(queue.TaskStatusProcessing),
	).Scan(&status)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return false, s.missing(ctx, taskID)
		}
		return false, fmt.Errorf("fail task %s: %w", taskID, err)
	}
	return status == string(queue.TaskStatusPending), nil
}

func (s *QueueStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		WITH moved AS (
			DELETE FROM queue_tasks WHERE id = $1
			RETURNING id, queue, task_name, payload, retry_count, error, created_at
		)
		INSERT INTO queue_dead_tasks (id, queue, task_name, payload, retry_count, error, created_at, failed_at)
		SELECT id, queue, task_name, payload, retry_count, error, created_at, $2 FROM moved`,
		taskID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("move task %s to dlq: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrTaskNotFound
	}
	return nil
}

// Task returns a stored task.
func (s *QueueStorage) Task(ctx context.Context, id uuid.UUID) (*queue.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, queue, task_name, payload, status, retry_count, max_retries,
		       scheduled_at, locked_until, processed_at, error, created_at
		FROM queue_tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	task, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, queue.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// missing tells an unknown task apart from one in another state.
func (s *QueueStorage) missing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("get task %s: %w", id, err)
	}
	if !exists {
		return queue.ErrTaskNotFound
	}
	return queue.ErrTaskNotProcessing
}

func scanTask(row pgx.CollectableRow) (*queue.Task, error) {
	var (
		t           queue.Task
		status      string
		retryCount  int16
		maxRetries  int16
		lockedUntil *time.Time
		processedAt *time.Time
	)
	if err := row.Scan(&t.ID, &t.Queue, &t.TaskName, &t.Payload, &status, &retryCount, &maxRetries,
		&t.ScheduledAt, &lockedUntil, &processedAt, &t.Error, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Status = queue.TaskStatus(status)
	t.RetryCount = int8(retryCount)
	t.MaxRetries = int8(maxRetries)
	if lockedUntil != nil {
		t.LockedUntil = *lockedUntil
	}
	if processedAt != nil {
		t.ProcessedAt = *processedAt
	}
	return &t, nil
}
