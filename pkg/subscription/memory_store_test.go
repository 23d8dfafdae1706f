package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("save and get returns copies", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		sub := &subscription.Subscription{ID: uuid.New(), Items: []subscription.LineItem{{ID: uuid.New(), Name: "a"}}}
		require.NoError(t, store.SaveSubscription(ctx, sub))

		sub.Items[0].Name = "mutated"
		got, err := store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "a", got.Items[0].Name)

		_, err = store.GetSubscription(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("orders for subscription newest first", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		subID := uuid.New()
		base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		parent := &subscription.Order{ID: uuid.New(), Kind: subscription.OrderKindParent, SubscriptionIDs: []uuid.UUID{subID}, CreatedAt: base}
		renewal := &subscription.Order{ID: uuid.New(), Kind: subscription.OrderKindRenewal, SubscriptionIDs: []uuid.UUID{subID}, CreatedAt: base.AddDate(0, 1, 0)}
		other := &subscription.Order{ID: uuid.New(), Kind: subscription.OrderKindParent, SubscriptionIDs: []uuid.UUID{uuid.New()}, CreatedAt: base}
		for _, o := range []*subscription.Order{parent, renewal, other} {
			require.NoError(t, store.SaveOrder(ctx, o))
		}

		orders, err := store.OrdersForSubscription(ctx, subID)
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, renewal.ID, orders[0].ID)
		assert.Equal(t, parent.ID, orders[1].ID)

		require.NoError(t, store.DeleteOrder(ctx, renewal.ID))
		assert.ErrorIs(t, store.DeleteOrder(ctx, renewal.ID), subscription.ErrOrderNotFound)
		_, err = store.LockOrder(ctx, renewal.ID)
		assert.ErrorIs(t, err, subscription.ErrOrderNotFound)
	})

	t.Run("transaction commits", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		sub := &subscription.Subscription{ID: uuid.New(), Status: subscription.StatusActive}
		require.NoError(t, store.SaveSubscription(ctx, sub))

		err := store.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
			s, err := tx.GetSubscription(ctx, sub.ID)
			if err != nil {
				return err
			}
			s.Status = subscription.StatusOnHold
			return tx.SaveSubscription(ctx, s)
		})
		require.NoError(t, err)

		got, err := store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusOnHold, got.Status)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		sub := &subscription.Subscription{ID: uuid.New(), Status: subscription.StatusActive}
		require.NoError(t, store.SaveSubscription(ctx, sub))
		boom := errors.New("boom")

		err := store.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
			s, _ := tx.GetSubscription(ctx, sub.ID)
			s.Status = subscription.StatusCancelled
			if err := tx.SaveSubscription(ctx, s); err != nil {
				return err
			}
			if err := tx.SaveOrder(ctx, &subscription.Order{ID: uuid.New(), SubscriptionIDs: []uuid.UUID{sub.ID}}); err != nil {
				return err
			}
			return tx.WithTx(ctx, func(ctx context.Context, _ subscription.Repository) error { return boom })
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, got.Status)
		orders, _ := store.OrdersForSubscription(ctx, sub.ID)
		assert.Empty(t, orders)
	})
}
