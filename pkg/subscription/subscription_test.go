package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

func TestItemType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, subscription.ItemTypeCoupon, subscription.ItemTypeCouponPendingSwitch.Base())
	assert.Equal(t, subscription.ItemTypeFee, subscription.ItemTypeFeeSwitched.Base())
	assert.Equal(t, subscription.ItemTypeLineItemPendingSwitch, subscription.ItemTypeLineItem.Pending())
	assert.Equal(t, subscription.ItemTypeShippingSwitched, subscription.ItemTypeShippingPendingSwitch.Switched())

	assert.True(t, subscription.ItemTypeLineItem.IsLive())
	assert.False(t, subscription.ItemTypeLineItemSwitched.IsLive())
	assert.True(t, subscription.ItemTypeLineItemPendingSwitch.IsPending())
	assert.False(t, subscription.ItemTypeLineItemPendingSwitch.IsSwitched())
	assert.True(t, subscription.ItemTypeCouponSwitched.IsSwitched())
}

func TestSubscription_CalculateTotals(t *testing.T) {
	t.Parallel()

	sub := &subscription.Subscription{
		Items: []subscription.LineItem{
			{Type: subscription.ItemTypeLineItem, Subtotal: decimal.NewFromInt(20), Total: decimal.NewFromInt(18), Tax: decimal.NewFromInt(2)},
			{Type: subscription.ItemTypeLineItemPendingSwitch, Subtotal: decimal.NewFromInt(99), Total: decimal.NewFromInt(99)},
			{Type: subscription.ItemTypeLineItemSwitched, Subtotal: decimal.NewFromInt(50), Total: decimal.NewFromInt(50)},
			{Type: subscription.ItemTypeCoupon, Total: decimal.NewFromInt(2)},
			{Type: subscription.ItemTypeShipping, Total: decimal.NewFromInt(5)},
			{Type: subscription.ItemTypeFee, Total: decimal.NewFromInt(1), Tax: decimal.RequireFromString("0.5")},
		},
	}
	sub.CalculateTotals()

	assert.True(t, decimal.NewFromInt(20).Equal(sub.Subtotal))
	assert.True(t, decimal.NewFromInt(2).Equal(sub.DiscountTotal))
	assert.True(t, decimal.RequireFromString("2.5").Equal(sub.TotalTax))
	assert.True(t, decimal.RequireFromString("26.5").Equal(sub.Total), sub.Total.String())
}

func TestSubscription_Items(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	sub := &subscription.Subscription{
		Items: []subscription.LineItem{
			{ID: a, Type: subscription.ItemTypeLineItem},
			{ID: b, Type: subscription.ItemTypeLineItemSwitched},
		},
	}

	item, ok := sub.ItemByID(b)
	require.True(t, ok)
	item.SwitchedToItemID = a
	assert.Equal(t, a, sub.Items[1].SwitchedToItemID)

	assert.Len(t, sub.LiveProductItems(), 1)

	clone := sub.Clone()
	clone.Items[0].Name = "changed"
	assert.Empty(t, sub.Items[0].Name)

	assert.True(t, sub.RemoveItem(a))
	assert.False(t, sub.RemoveItem(a))
	assert.Len(t, sub.Items, 1)
}

func TestSubscription_Dates(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	sub := &subscription.Subscription{TrialEnd: now.Add(time.Hour)}
	assert.True(t, sub.IsInTrial(now))
	assert.False(t, sub.IsInTrial(now.Add(2*time.Hour)))

	sub.SetDate(subscription.DateNextPayment, now)
	assert.Equal(t, now, sub.Date(subscription.DateNextPayment))
	sub.SetDate(subscription.DateTrialEnd, time.Time{})
	assert.False(t, sub.IsInTrial(now))
}

func TestOrder(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	o := &subscription.Order{Kind: subscription.OrderKindRenewal, Status: subscription.OrderStatusCompleted, CreatedAt: created}

	assert.True(t, o.IsPaid())
	assert.False(t, o.IsPaid(subscription.OrderStatusProcessing))
	assert.True(t, o.IsRegular())
	assert.Equal(t, created, o.PaidOrCreatedAt())

	o.EarlyRenewal = true
	assert.False(t, o.IsRegular())

	o.PaidAt = created.Add(time.Hour)
	assert.Equal(t, created.Add(time.Hour), o.PaidOrCreatedAt())

	o.Items = []subscription.LineItem{
		{Type: subscription.ItemTypeLineItem, Total: decimal.NewFromInt(10), Tax: decimal.NewFromInt(1)},
		{Type: subscription.ItemTypeCoupon, Total: decimal.NewFromInt(3)},
	}
	o.CalculateTotal()
	assert.True(t, decimal.NewFromInt(8).Equal(o.Total))
}

func TestSortNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	orders := []*subscription.Order{
		{Kind: subscription.OrderKindParent, CreatedAt: base},
		{Kind: subscription.OrderKindSwitch, CreatedAt: base.Add(48 * time.Hour)},
		{Kind: subscription.OrderKindRenewal, CreatedAt: base.Add(24 * time.Hour)},
	}
	subscription.SortNewestFirst(orders)

	assert.Equal(t, subscription.OrderKindSwitch, orders[0].Kind)
	assert.Equal(t, subscription.OrderKindParent, orders[2].Kind)
	assert.Len(t, subscription.FilterOrders(orders, subscription.OrderKindParent, subscription.OrderKindRenewal), 2)
}

func TestSwitchPlan_Clone(t *testing.T) {
	t.Parallel()

	subID := uuid.New()
	plan := subscription.SwitchPlan{
		subID: {
			Switches:        []subscription.SwitchChange{{AddItemID: uuid.New(), RemoveItemID: uuid.New()}},
			BillingSchedule: &subscription.Schedule{Period: subscription.PeriodWeek, Interval: 1},
			Dates: subscription.DateChanges{
				Update: map[subscription.DateType]time.Time{subscription.DateNextPayment: time.Now()},
			},
		},
	}
	clone := plan.Clone()
	clone[subID].BillingSchedule.Interval = 2
	clone[subID].Switches[0].AddItemID = uuid.Nil

	assert.Equal(t, 1, plan[subID].BillingSchedule.Interval)
	assert.NotEqual(t, uuid.Nil, plan[subID].Switches[0].AddItemID)
	assert.False(t, plan[subID].IsEmpty())
	assert.True(t, (&subscription.SubscriptionChanges{}).IsEmpty())
	assert.Equal(t, []uuid.UUID{subID}, plan.SubscriptionIDs())
}

func TestProduct(t *testing.T) {
	t.Parallel()

	p := subscription.Product{ID: uuid.New(), Price: decimal.NewFromInt(10), Period: subscription.PeriodMonth, Interval: 1}
	require.NoError(t, p.Validate())
	assert.False(t, p.IsOnePayment())

	p.Length = 1
	assert.True(t, p.IsOnePayment())

	trial := p
	trial.TrialLength, trial.TrialPeriod = 14, subscription.PeriodDay
	assert.True(t, trial.HasTrial())
	assert.False(t, trial.TrialMatches(p))
	assert.True(t, trial.TrialMatches(trial))

	bad := subscription.Product{Period: "fortnight", Price: decimal.NewFromInt(-1)}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, subscription.ErrInvalidProduct)
	assert.ErrorIs(t, err, subscription.ErrInvalidBillingPeriod)
	assert.ErrorIs(t, err, subscription.ErrInvalidBillingInterval)
}
