package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/audit"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Store(ctx context.Context, events ...audit.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func TestLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("log with options", func(t *testing.T) {
		t.Parallel()
		storage := audit.NewMemoryStorage()
		l := audit.NewLogger(storage,
			audit.WithClock(func() time.Time { return now }),
			audit.WithActorExtractor(func(context.Context) (string, bool) { return "system", true }),
		)

		require.NoError(t, l.Log(ctx, "subscription.switched",
			audit.WithResource("subscription", "sub-1"),
			audit.WithMessage("Customer switched from: A to B."),
			audit.WithMetadata("order_id", "o-1"),
		))

		events := storage.Events("subscription", "sub-1")
		require.Len(t, events, 1)
		e := events[0]
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "system", e.ActorID)
		assert.Equal(t, audit.ResultSuccess, e.Result)
		assert.Equal(t, now, e.CreatedAt)
		assert.Equal(t, "o-1", e.Metadata["order_id"])
		assert.Empty(t, storage.Events("subscription", "other"))
	})

	t.Run("log error", func(t *testing.T) {
		t.Parallel()
		storage := audit.NewMemoryStorage()
		l := audit.NewLogger(storage)
		require.NoError(t, l.LogError(ctx, "order.switch_failed", errors.New("boom")))

		events := storage.Events("", "")
		require.Len(t, events, 1)
		assert.Equal(t, audit.ResultError, events[0].Result)
		assert.Equal(t, "boom", events[0].Error)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		l := audit.NewLogger(audit.NewMemoryStorage())
		assert.ErrorIs(t, l.Log(ctx, ""), audit.ErrEventValidation)
	})

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()
		storage := &mockStorage{}
		storage.On("Store", ctx, mock.Anything).Return(audit.ErrStorageNotAvailable)
		l := audit.NewLogger(storage)
		assert.ErrorIs(t, l.Log(ctx, "x"), audit.ErrStorageNotAvailable)
		storage.AssertExpectations(t)
	})

	t.Run("nil storage panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { audit.NewLogger(nil) })
	})
}
