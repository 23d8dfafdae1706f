package broadcast

import (
	"context"
	"errors"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("broadcast: broadcaster is closed")

// Message wraps data of type T.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed by Close.
	Receive() <-chan Message[T]
	// Close stops delivery. It is idempotent.
	Close() error
}

// Broadcaster delivers every message to all current subscribers.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber until ctx is done or Close is called.
	Subscribe(ctx context.Context) Subscriber[T]
	Broadcast(ctx context.Context, msg Message[T]) error
	Close() error
}

// Listen calls fn for every message until ctx is done or the subscriber is closed.
// Errors from fn are passed to onErr when it is not nil.
func Listen[T any](ctx context.Context, sub Subscriber[T], fn func(context.Context, T) error, onErr func(error)) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Receive():
			if !ok {
				return
			}
			if err := fn(ctx, msg.Data); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
