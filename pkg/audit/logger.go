package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger records audit events.
type Logger interface {
	Log(ctx context.Context, action string, opts ...EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
}

// Option configures the logger.
type Option func(*logger)

// WithActorExtractor fills Event.ActorID from the context.
func WithActorExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *logger) { l.actor = fn }
}

// WithClock overrides the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *logger) {
		if now != nil {
			l.now = now
		}
	}
}

type logger struct {
	storage Storage
	actor   func(context.Context) (string, bool)
	now     func() time.Time
}

// NewLogger creates a Logger writing to storage. Panics if storage is nil.
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.store(ctx, l.event(ctx, action, ResultSuccess), opts)
}

func (l *logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	e := l.event(ctx, action, ResultError)
	if err != nil {
		e.Error = err.Error()
	}
	return l.store(ctx, e, opts)
}

func (l *logger) event(ctx context.Context, action string, result Result) Event {
	e := Event{
		ID:        uuid.NewString(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}
	if l.actor != nil {
		if id, ok := l.actor(ctx); ok {
			e.ActorID = id
		}
	}
	return e
}

func (l *logger) store(ctx context.Context, e Event, opts []EventOption) error {
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, e)
}
