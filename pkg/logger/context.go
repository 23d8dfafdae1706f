package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type orderKey struct{}

// WithOrderID stores the order being processed in ctx.
func WithOrderID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, orderKey{}, id)
}

// OrderIDFromContext returns the order stored by WithOrderID.
func OrderIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(orderKey{}).(uuid.UUID)
	return id, ok
}

// OrderExtractor adds "order_id" to records logged with an order in context.
func OrderExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := OrderIDFromContext(ctx); ok {
			return OrderID(id), true
		}
		return slog.Attr{}, false
	}
}
