package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-process task store for tests and single-node deployments.
type MemoryStorage struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*Task
	dead    []DeadTask
	now     func() time.Time
	backoff time.Duration
}

var (
	_ EnqueuerRepository = (*MemoryStorage)(nil)
	_ WorkerRepository   = (*MemoryStorage)(nil)
)

// MemoryStorageOption configures a MemoryStorage.
type MemoryStorageOption func(*MemoryStorage)

// WithStorageClock overrides time.Now.
func WithStorageClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) { ms.now = now }
}

// WithRetryBackoff sets the linear retry step. Attempt n waits n*d.
func WithRetryBackoff(d time.Duration) MemoryStorageOption {
	return func(ms *MemoryStorage) { ms.backoff = d }
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:   make(map[uuid.UUID]*Task),
		now:     time.Now,
		backoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}
	c := *task
	ms.tasks[task.ID] = &c
	return nil
}

// ClaimTask picks the oldest due task. Processing tasks whose lock expired are claimable again.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	var best *Task
	for _, task := range ms.tasks {
		if !slices.Contains(queues, task.Queue) || task.ScheduledAt.After(now) {
			continue
		}
		switch task.Status {
		case TaskStatusPending:
		case TaskStatusProcessing:
			if task.LockedUntil.After(now) {
				continue
			}
		default:
			continue
		}
		if best == nil || task.ScheduledAt.Before(best.ScheduledAt) ||
			(task.ScheduledAt.Equal(best.ScheduledAt) && task.CreatedAt.Before(best.CreatedAt)) {
			best = task
		}
	}
	if best == nil {
		return nil, ErrNoTaskToClaim
	}
	best.Status = TaskStatusProcessing
	best.LockedUntil = now.Add(lockDuration)
	c := *best
	return &c, nil
}

func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	task, err := ms.processing(taskID)
	if err != nil {
		return err
	}
	task.Status = TaskStatusCompleted
	task.ProcessedAt = ms.now()
	task.LockedUntil = time.Time{}
	return nil
}

// FailTask records the error and reschedules the task, or marks it failed once
// retries are exhausted. It reports whether the task will be retried.
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	task, err := ms.processing(taskID)
	if err != nil {
		return false, err
	}
	task.Error = errMsg
	task.LockedUntil = time.Time{}
	if task.RetryCount >= task.MaxRetries {
		task.Status = TaskStatusFailed
		return false, nil
	}
	task.RetryCount++
	task.Status = TaskStatusPending
	task.ScheduledAt = ms.now().Add(time.Duration(task.RetryCount) * ms.backoff)
	return true, nil
}

func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	task, ok := ms.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	ms.dead = append(ms.dead, DeadTask{Task: *task, FailedAt: ms.now()})
	delete(ms.tasks, taskID)
	return nil
}

// Task returns a copy of a stored task.
func (ms *MemoryStorage) Task(id uuid.UUID) (Task, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	task, ok := ms.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Tasks returns copies of all stored tasks with the given status.
func (ms *MemoryStorage) Tasks(status TaskStatus) []Task {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var out []Task
	for _, task := range ms.tasks {
		if task.Status == status {
			out = append(out, *task)
		}
	}
	return out
}

// DeadTasks returns the dead letter entries.
func (ms *MemoryStorage) DeadTasks() []DeadTask {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return slices.Clone(ms.dead)
}

func (ms *MemoryStorage) processing(id uuid.UUID) (*Task, error) {
	task, ok := ms.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status != TaskStatusProcessing {
		return nil, ErrTaskNotProcessing
	}
	return task, nil
}
