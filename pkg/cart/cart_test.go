package cart_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

func newCart() *cart.Cart {
	return &cart.Cart{
		ID: uuid.New(),
		Items: []cart.Item{
			{Key: "plain", ProductID: uuid.New(), Quantity: 1, Price: decimal.NewFromInt(5)},
			{
				Key: "switch", ProductID: uuid.New(), Quantity: 3,
				Price: decimal.NewFromInt(10), SignUpFee: decimal.RequireFromString("1.5"),
				Switch: &cart.SwitchDetails{SubscriptionID: uuid.New(), ItemID: uuid.New()},
			},
		},
		Adjustments: []cart.Adjustment{
			{Type: subscription.ItemTypeCoupon, Code: "TEN", Recurring: true},
			{Type: subscription.ItemTypeCoupon, Code: "ONCE"},
			{Type: subscription.ItemTypeShipping, Name: "Flat", Recurring: true},
		},
	}
}

func TestCart(t *testing.T) {
	t.Parallel()

	t.Run("switch items", func(t *testing.T) {
		t.Parallel()
		c := newCart()
		items := c.SwitchItems()
		require.Len(t, items, 1)
		assert.Equal(t, "switch", items[0].Key)

		items[0].Switch.SwitchType = "upgrade"
		assert.Equal(t, "upgrade", c.Items[1].Switch.SwitchType)
		assert.True(t, items[0].Switch.ChargesNow())
	})

	t.Run("totals", func(t *testing.T) {
		t.Parallel()
		item, ok := newCart().Item("switch")
		require.True(t, ok)
		assert.True(t, decimal.NewFromInt(30).Equal(item.RecurringTotal()))
		assert.True(t, decimal.RequireFromString("4.5").Equal(item.SignUpFeeTotal()))
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		c := newCart()
		require.NoError(t, c.Remove("plain"))
		assert.ErrorIs(t, c.Remove("plain"), cart.ErrItemNotFound)
		assert.Len(t, c.Items, 1)
	})

	t.Run("recurring adjustments", func(t *testing.T) {
		t.Parallel()
		c := newCart()
		coupons := c.RecurringAdjustments(subscription.ItemTypeCoupon)
		require.Len(t, coupons, 1)
		assert.Equal(t, "TEN", coupons[0].Code)
		assert.Empty(t, c.RecurringAdjustments(subscription.ItemTypeFee))
	})

	t.Run("clone is deep", func(t *testing.T) {
		t.Parallel()
		c := newCart()
		clone := c.Clone()
		clone.Items[1].Switch.SwitchType = "downgrade"
		clone.AddNotice(cart.NoticeError, "removed")

		assert.Empty(t, c.Items[1].Switch.SwitchType)
		assert.Empty(t, c.Notices)
		assert.Len(t, clone.Notices, 1)
	})
}
