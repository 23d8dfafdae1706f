package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/switchkit/pkg/logger"
)

// WorkerRepository defines the storage operations used by Worker.
type WorkerRepository interface {
	// ClaimTask locks the next due task. It returns ErrNoTaskToClaim when idle.
	ClaimTask(ctx context.Context, queues []string, lockDuration time.Duration) (*Task, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID) error
	// FailTask records a failed attempt and reports whether the task will be retried.
	FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) (bool, error)
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error
}

// Worker polls the repository and runs registered handlers.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	mu       sync.RWMutex

	queues       []string
	pullInterval time.Duration
	lockTimeout  time.Duration
	sem          chan struct{}
	logger       *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithQueues sets which queues the worker pulls from.
func WithQueues(queues ...string) WorkerOption {
	return func(w *Worker) {
		if len(queues) > 0 {
			w.queues = queues
		}
	}
}

// WithPullInterval sets how often the worker polls for tasks.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pullInterval = d
		}
	}
}

// WithLockTimeout bounds a single task run.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockTimeout = d
		}
	}
}

// WithMaxConcurrentTasks limits parallel task runs.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.sem = make(chan struct{}, n)
		}
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker for repo.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	w := &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       []string{DefaultQueueName},
		pullInterval: time.Second,
		lockTimeout:  5 * time.Minute,
		sem:          make(chan struct{}, 1),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.Component("queue"))
	return w, nil
}

// NewWorkerFromConfig creates a worker using cfg.
func NewWorkerFromConfig(repo WorkerRepository, cfg Config, opts ...WorkerOption) (*Worker, error) {
	base := []WorkerOption{
		WithPullInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithMaxConcurrentTasks(cfg.MaxConcurrentTasks),
	}
	return NewWorker(repo, append(base, opts...)...)
}

// RegisterHandlers adds handlers. A later handler with the same name replaces an earlier one.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins polling in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrWorkerStarted
	}
	if len(w.handlers) == 0 {
		return ErrNoHandlers
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("worker started",
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))
	return nil
}

// Stop cancels polling and waits for running tasks.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return ErrWorkerNotStarted
	}
	cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
	return nil
}

// Run starts the worker and blocks until ctx is done. It fits errgroup.Go.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		select {
		case w.sem <- struct{}{}:
		default:
			continue
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-w.sem }()
			if _, err := w.ProcessNext(ctx); err != nil && !errors.Is(err, ErrHandlerNotFound) {
				w.logger.Error("failed to process task", logger.Error(err))
			}
		}()
	}
}

// ProcessNext claims and runs one task. It reports whether a task was claimed.
// Handler failures are recorded on the task and do not produce an error.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	task, err := w.repo.ClaimTask(ctx, w.queues, w.lockTimeout)
	if errors.Is(err, ErrNoTaskToClaim) {
		return false, nil
	}
	if err != nil {
		return false, errors.Join(ErrFailedToClaimTask, err)
	}
	return true, w.processTask(task)
}

func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()
	log := w.logger.With(
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()
	if !ok {
		log.Error("no handler registered for task")
		return errors.Join(ErrHandlerNotFound, w.fail(task, "no handler registered for task: "+task.TaskName, true))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked", slog.Any("panic", r))
			retErr = w.fail(task, fmt.Sprintf("panic in handler: %v", r), false)
		}
	}()

	// Tasks finish on their own deadline so shutdown does not abort a commit midway.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	if err := handler.Handle(ctx, task.Payload); err != nil {
		log.Error("task failed",
			slog.Int("retry_count", int(task.RetryCount)),
			logger.Duration(time.Since(start)),
			logger.Error(err))
		return w.fail(task, err.Error(), false)
	}

	if err := w.repo.CompleteTask(context.Background(), task.ID); err != nil {
		return errors.Join(ErrFailedToUpdateTask, err)
	}
	log.Info("task completed", logger.Duration(time.Since(start)))
	return nil
}

func (w *Worker) fail(task *Task, msg string, dead bool) error {
	retry, err := w.repo.FailTask(context.Background(), task.ID, msg)
	if err != nil {
		return errors.Join(ErrFailedToUpdateTask, err)
	}
	if retry && !dead {
		return nil
	}
	if err := w.repo.MoveToDLQ(context.Background(), task.ID); err != nil {
		return errors.Join(ErrFailedToUpdateTask, err)
	}
	w.logger.Warn("task moved to dead letter queue",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))
	return nil
}
