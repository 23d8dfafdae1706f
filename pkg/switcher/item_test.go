package switcher_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
	"github.com/dmitrymomot/switchkit/pkg/switcher"
)

type switchedLine struct {
	sub     *subscription.Subscription
	current subscription.LineItem
	parent  *subscription.Order
	monthly subscription.Product
	premium subscription.Product
}

// newSwitchedLine is a subscription paid on April 1st for Monthly and switched to Premium since.
func newSwitchedLine(next time.Time) switchedLine {
	monthly := plan("Monthly", "10", subscription.PeriodMonth)
	premium := plan("Premium", "20", subscription.PeriodMonth)
	oldID, newID := uuid.New(), uuid.New()
	current := subscription.LineItem{
		ID:                 newID,
		Type:               subscription.ItemTypeLineItem,
		ProductID:          premium.ID,
		Name:               premium.Name,
		Quantity:           1,
		Total:              premium.Price,
		SwitchedFromItemID: oldID,
	}
	sub := &subscription.Subscription{
		ID:          uuid.New(),
		Status:      subscription.StatusActive,
		Period:      subscription.PeriodMonth,
		Interval:    1,
		Start:       apr1,
		NextPayment: next,
		Items: []subscription.LineItem{
			{
				ID:               oldID,
				Type:             subscription.ItemTypeLineItemSwitched,
				ProductID:        monthly.ID,
				Name:             monthly.Name,
				Quantity:         1,
				Total:            monthly.Price,
				SwitchedToItemID: newID,
			},
			current,
		},
	}
	parent := &subscription.Order{
		ID:        uuid.New(),
		Kind:      subscription.OrderKindParent,
		Status:    subscription.OrderStatusCompleted,
		CreatedAt: apr1,
		PaidAt:    apr1,
		Items: []subscription.LineItem{{
			Type:      subscription.ItemTypeLineItem,
			ProductID: monthly.ID,
			Quantity:  1,
			Total:     monthly.Price,
			Tax:       decimal.NewFromInt(2),
		}},
	}
	return switchedLine{sub: sub, current: current, parent: parent, monthly: monthly, premium: premium}
}

func switchOrder(productID uuid.UUID, total string, paidAt time.Time) *subscription.Order {
	return &subscription.Order{
		ID:        uuid.New(),
		Kind:      subscription.OrderKindSwitch,
		Status:    subscription.OrderStatusProcessing,
		CreatedAt: paidAt,
		PaidAt:    paidAt,
		Items: []subscription.LineItem{{
			Type:      subscription.ItemTypeLineItem,
			ProductID: productID,
			Quantity:  1,
			Total:     dec(total),
		}},
	}
}

func newCalcItem(l switchedLine, to subscription.Product, orders []*subscription.Order, now time.Time, settings switcher.Settings) *switcher.Item {
	ci := &cart.Item{
		Key:       "switch",
		ProductID: to.ID,
		Quantity:  1,
		Switch:    &cart.SwitchDetails{SubscriptionID: l.sub.ID, ItemID: l.current.ID},
	}
	return switcher.NewItem(ci, l.sub, l.current, to, l.premium, orders, now, settings, nil)
}

func TestItem_TotalPaidForCurrentPeriod(t *testing.T) {
	t.Parallel()

	apr20 := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)

	t.Run("walks switch orders back to the baseline", func(t *testing.T) {
		t.Parallel()
		l := newSwitchedLine(may1)
		sw := switchOrder(l.premium.ID, "5", apr16)
		item := newCalcItem(l, l.monthly, []*subscription.Order{sw, l.parent}, apr20, switcher.DefaultSettings())

		assert.False(t, item.IsSwitchAfterFullyReducedPrepaidTerm())
		assert.Equal(t, apr1, item.LastOrderPaidTime())
		assert.True(t, dec("15").Equal(item.TotalPaidForCurrentPeriod()), item.TotalPaidForCurrentPeriod().String())
		assert.Equal(t, 30, item.DaysInOldCycle())
		assert.True(t, dec("0.5").Equal(item.OldPricePerDay()))
		assert.Equal(t, 19, item.DaysSinceLastPayment())
		assert.Equal(t, 11, item.DaysUntilNextPayment())
		assert.Equal(t, 1, item.CompletedPayments())
	})

	t.Run("includes tax when prices include tax", func(t *testing.T) {
		t.Parallel()
		l := newSwitchedLine(may1)
		settings := switcher.DefaultSettings()
		settings.PricesIncludeTax = true
		item := newCalcItem(l, l.monthly, []*subscription.Order{l.parent}, apr20, settings)

		assert.True(t, dec("12").Equal(item.TotalPaidForCurrentPeriod()))
	})

	t.Run("ignores unpaid orders", func(t *testing.T) {
		t.Parallel()
		l := newSwitchedLine(may1)
		sw := switchOrder(l.premium.ID, "5", apr16)
		sw.Status = subscription.OrderStatusPending
		item := newCalcItem(l, l.monthly, []*subscription.Order{sw, l.parent}, apr20, switcher.DefaultSettings())

		assert.True(t, dec("10").Equal(item.TotalPaidForCurrentPeriod()))
	})

	t.Run("falls back to the line total", func(t *testing.T) {
		t.Parallel()
		l := newSwitchedLine(may1)
		item := newCalcItem(l, l.monthly, nil, apr20, switcher.DefaultSettings())

		assert.Equal(t, apr1, item.LastOrderPaidTime(), "subscription start")
		assert.True(t, dec("20").Equal(item.TotalPaidForCurrentPeriod()))
	})
}

func TestItem_SwitchAfterFullyReducedPrepaidTerm(t *testing.T) {
	t.Parallel()

	// The switch on April 11th charged a full cycle and moved the renewal to May 11th.
	l := newSwitchedLine(time.Date(2025, 5, 11, 0, 0, 0, 0, time.UTC))
	sw := switchOrder(l.premium.ID, "20", apr11)
	item := newCalcItem(l, l.monthly, []*subscription.Order{sw, l.parent}, apr16, switcher.DefaultSettings())

	assert.True(t, item.IsSwitchAfterFullyReducedPrepaidTerm())
	assert.Equal(t, apr11, item.LastOrderPaidTime())
	assert.True(t, dec("20").Equal(item.TotalPaidForCurrentPeriod()), "orders before the switch are not counted")
	assert.Equal(t, 5, item.DaysSinceLastPayment())
}

func TestItem_DaysUntilNextPaymentIsNeverNegative(t *testing.T) {
	t.Parallel()

	l := newSwitchedLine(may1)
	item := newCalcItem(l, l.monthly, []*subscription.Order{l.parent}, may1.AddDate(0, 0, 2), switcher.DefaultSettings())

	assert.Zero(t, item.DaysUntilNextPayment())
}

func TestParseSwitchType(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"upgrade", "downgrade", "crossgrade"} {
		st, err := switcher.ParseSwitchType(v)
		assert.NoError(t, err)
		assert.Equal(t, switcher.SwitchType(v), st)
	}
	_, err := switcher.ParseSwitchType("Upgrade")
	assert.True(t, switcher.IsInvalidSwitchType(err))
}
