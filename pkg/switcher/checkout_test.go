package switcher_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/audit"
	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
	"github.com/dmitrymomot/switchkit/pkg/switcher"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []switcher.SwitchCompletedEvent
}

func (r *eventRecorder) listen(_ context.Context, ev switcher.SwitchCompletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) all() []switcher.SwitchCompletedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]switcher.SwitchCompletedEvent(nil), r.events...)
}

func pendingItems(sub *subscription.Subscription) []subscription.LineItem {
	var out []subscription.LineItem
	for _, item := range sub.Items {
		if item.Type.IsPending() {
			out = append(out, item)
		}
	}
	return out
}

func TestCheckout_UpgradeInPlace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	notes := audit.NewMemoryStorage()
	carts := cart.NewMemoryStore()
	reg := prometheus.NewRegistry()
	rec := &eventRecorder{}
	svc := f.service(t, apr16,
		switcher.WithCartStore(carts),
		switcher.WithNotes(audit.NewLogger(notes)),
		switcher.WithMetrics(switcher.NewMetrics(reg)),
		switcher.WithListeners(rec.listen),
	)
	c := f.cart(t, svc, f.premium)
	require.NoError(t, carts.Save(ctx, c))

	order, err := svc.Checkout(ctx, c)
	require.NoError(t, err)

	assert.Equal(t, subscription.OrderKindSwitch, order.Kind)
	assert.Equal(t, subscription.OrderStatusPending, order.Status)
	assert.True(t, dec("5").Equal(order.Total), order.Total.String())
	assert.Equal(t, []uuid.UUID{f.sub.ID}, order.SubscriptionIDs)
	require.Contains(t, order.SwitchPlan, f.sub.ID)
	changes := order.SwitchPlan[f.sub.ID]
	require.Len(t, changes.Switches, 1)
	assert.Equal(t, f.item.ID, changes.Switches[0].RemoveItemID)
	assert.Nil(t, changes.BillingSchedule)

	_, err = carts.Get(ctx, c.ID)
	assert.ErrorIs(t, err, cart.ErrCartNotFound)

	sub := f.reload(t)
	require.Len(t, sub.LiveProductItems(), 1, "nothing changes before payment")
	assert.Equal(t, f.monthly.ID, sub.LiveProductItems()[0].ProductID)
	pending := pendingItems(sub)
	require.Len(t, pending, 1)
	assert.Equal(t, changes.Switches[0].AddItemID, pending[0].ID)
	assert.Equal(t, f.item.ID, pending[0].SwitchedFromItemID)

	_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventPay)
	require.NoError(t, err)

	sub = f.reload(t)
	live := sub.LiveProductItems()
	require.Len(t, live, 1)
	assert.Equal(t, f.premium.ID, live[0].ProductID)
	assert.Empty(t, pendingItems(sub))
	old, ok := sub.ItemByID(f.item.ID)
	require.True(t, ok)
	assert.Equal(t, subscription.ItemTypeLineItemSwitched, old.Type)
	assert.Equal(t, live[0].ID, old.SwitchedToItemID)
	assert.True(t, dec("20").Equal(sub.Total))
	assert.Equal(t, may1, sub.NextPayment)

	paid, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, paid.SwitchCompleted)
	assert.Equal(t, apr16, paid.PaidAt)

	subNotes := notes.Events("subscription", f.sub.ID.String())
	require.Len(t, subNotes, 1)
	assert.Equal(t, "Customer switched from: Monthly to Premium.", subNotes[0].Message)
	assert.Len(t, notes.Events("order", order.ID.String()), 1)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].OrderID)
	require.Len(t, events[0].Subscriptions, 1)
	assert.Equal(t, []switcher.SwitchedItem{{From: "Monthly", To: "Premium"}}, events[0].Subscriptions[0].Switches)

	t.Run("completing again changes nothing", func(t *testing.T) {
		require.NoError(t, svc.CompleteSwitches(ctx, order.ID))

		again := f.reload(t)
		assert.Equal(t, sub.Items, again.Items)
		assert.Len(t, rec.all(), 1)
		assert.Len(t, notes.Events("subscription", f.sub.ID.String()), 1)
	})

	t.Run("metrics", func(t *testing.T) {
		expected := `
# HELP switchkit_switch_checkouts_total Switch orders recorded, by result.
# TYPE switchkit_switch_checkouts_total counter
switchkit_switch_checkouts_total{result="success"} 1
# HELP switchkit_switch_commits_total Switch order commits, by result.
# TYPE switchkit_switch_commits_total counter
switchkit_switch_commits_total{result="skipped"} 1
switchkit_switch_commits_total{result="success"} 1
`
		assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
			"switchkit_switch_checkouts_total", "switchkit_switch_commits_total"))
	})
}

func TestCheckout_ScheduleChangeInPlace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reduced prepaid term", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := f.service(t, apr11)
		order, err := svc.Checkout(ctx, f.cart(t, svc, f.weekly))
		require.NoError(t, err)

		changes := order.SwitchPlan[f.sub.ID]
		require.NotNil(t, changes.BillingSchedule)
		assert.Equal(t, subscription.Schedule{Period: subscription.PeriodWeek, Interval: 1}, *changes.BillingSchedule)
		assert.Equal(t, apr15, changes.Dates.Update[subscription.DateNextPayment])
		assert.True(t, order.Total.IsZero(), "nothing is due until the reduced term ends")

		_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventComplete)
		require.NoError(t, err)

		sub := f.reload(t)
		assert.Equal(t, subscription.PeriodWeek, sub.Period)
		assert.Equal(t, apr15, sub.NextPayment)
		assert.True(t, dec("5").Equal(sub.Total))
	})

	t.Run("charged now", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := f.service(t, apr16)
		order, err := svc.Checkout(ctx, f.cart(t, svc, f.weekly))
		require.NoError(t, err)

		assert.True(t, dec("5").Equal(order.Total), "first week is charged with the switch")
		next := order.SwitchPlan[f.sub.ID].Dates.Update[subscription.DateNextPayment]
		assert.Equal(t, apr16.AddDate(0, 0, 7), next)
	})
}

func TestCheckout_OnePaymentPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	annual := plan("Annual one-off", "120", subscription.PeriodYear)
	annual.Length = 1
	f.catalog.Put(annual)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	svc := f.service(t, apr16)
	order, err := svc.Checkout(ctx, f.cart(t, svc, annual))
	require.NoError(t, err)
	assert.True(t, dec("110.07").Equal(order.Total), "only the upgrade cost is charged: %s", order.Total)

	changes := order.SwitchPlan[f.sub.ID]
	assert.Contains(t, changes.Dates.Delete, subscription.DateNextPayment)
	assert.NotContains(t, changes.Dates.Update, subscription.DateNextPayment)
	assert.Equal(t, end, changes.Dates.Update[subscription.DateEnd])

	_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventPay)
	require.NoError(t, err)

	sub := f.reload(t)
	assert.Equal(t, subscription.PeriodYear, sub.Period)
	assert.True(t, sub.NextPayment.IsZero(), "no renewal is scheduled before the end date")
	assert.Equal(t, end, sub.End)
	assert.True(t, dec("120").Equal(sub.Total))
}

func TestCheckout_NewSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	sub := f.reload(t)
	extra := subscription.LineItem{
		ID:        uuid.New(),
		Type:      subscription.ItemTypeLineItem,
		ProductID: f.budget.ID,
		Name:      f.budget.Name,
		Quantity:  1,
		Subtotal:  f.budget.Price,
		Total:     f.budget.Price,
	}
	sub.Items = append(sub.Items, extra)
	sub.CalculateTotals()
	require.NoError(t, f.repo.SaveSubscription(ctx, sub))

	svc := f.service(t, apr11, switcher.WithListeners(switcher.PaymentMethodListener(f.repo)))
	c := f.cart(t, svc, f.weekly)
	c.PaymentMethod = "card"

	order, err := svc.Checkout(ctx, c)
	require.NoError(t, err)

	changes := order.SwitchPlan[f.sub.ID]
	require.Len(t, changes.Switches, 1)
	newID := changes.Switches[0].NewSubscriptionID
	require.NotEqual(t, uuid.Nil, newID)
	assert.ElementsMatch(t, []uuid.UUID{f.sub.ID, newID}, order.SubscriptionIDs)

	created, err := f.repo.GetSubscription(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, created.Status)
	assert.Equal(t, order.ID, created.ParentOrderID)
	assert.Equal(t, subscription.PeriodWeek, created.Period)
	assert.Equal(t, apr15, created.NextPayment)
	assert.Empty(t, pendingItems(f.reload(t)))

	_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventPay)
	require.NoError(t, err)

	created, err = f.repo.GetSubscription(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, created.Status)
	assert.Equal(t, "card", created.PaymentMethod)

	original := f.reload(t)
	live := original.LiveProductItems()
	require.Len(t, live, 1)
	assert.Equal(t, extra.ID, live[0].ID)
	assert.True(t, dec("5").Equal(original.Total))
	assert.Equal(t, subscription.StatusActive, original.Status)
	assert.Equal(t, "card", original.PaymentMethod)
}

func TestCheckout_Adjustments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	sub := f.reload(t)
	oldCoupon := subscription.LineItem{ID: uuid.New(), Type: subscription.ItemTypeCoupon, Code: "OLD", Total: dec("1")}
	sub.Items = append(sub.Items, oldCoupon)
	require.NoError(t, f.repo.SaveSubscription(ctx, sub))

	svc := f.service(t, apr16)
	c := f.cart(t, svc, f.premium)
	c.Adjustments = []cart.Adjustment{
		{Type: subscription.ItemTypeCoupon, Code: "NEW", Name: "New", Total: dec("2"), Recurring: true},
		{Type: subscription.ItemTypeFee, Name: "Setup", Total: dec("3")},
	}

	order, err := svc.Checkout(ctx, c)
	require.NoError(t, err)
	assert.True(t, dec("6").Equal(order.Total), "upgrade cost plus fee minus coupon: %s", order.Total)

	changes := order.SwitchPlan[f.sub.ID]
	assert.Equal(t, []uuid.UUID{oldCoupon.ID}, changes.Coupons.Remove)
	require.Len(t, changes.Coupons.Add, 1)
	assert.Empty(t, changes.Fees.Add, "one-off fees stay on the order")

	_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventPay)
	require.NoError(t, err)

	sub = f.reload(t)
	coupons := sub.ItemsOfType(subscription.ItemTypeCoupon)
	require.Len(t, coupons, 1)
	assert.Equal(t, "NEW", coupons[0].Code)
	require.Len(t, sub.ItemsOfType(subscription.ItemTypeCouponSwitched), 1)
}

func TestCheckout_SupersedesUnpaidSwitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	svc := f.service(t, apr16)
	first, err := svc.Checkout(ctx, f.cart(t, svc, f.premium))
	require.NoError(t, err)

	second, err := svc.Checkout(ctx, f.cart(t, svc, f.weekly))
	require.NoError(t, err)

	cancelled, err := f.repo.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.OrderStatusCancelled, cancelled.Status)

	pending := pendingItems(f.reload(t))
	require.Len(t, pending, 1)
	assert.Equal(t, f.weekly.ID, pending[0].ProductID)
	assert.Equal(t, second.SwitchPlan[f.sub.ID].Switches[0].AddItemID, pending[0].ID)
}

type failingRepo struct {
	*subscription.MemoryStore
}

var errCommit = errors.New("commit failed")

func (r failingRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx subscription.Repository) error) error {
	return r.MemoryStore.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errCommit
	})
}

func TestCheckout_FailureDeletesOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	reg := prometheus.NewRegistry()
	svc, err := switcher.New(failingRepo{f.repo}, f.catalog,
		switcher.WithClock(func() time.Time { return apr16 }),
		switcher.WithMetrics(switcher.NewMetrics(reg)))
	require.NoError(t, err)

	order, err := svc.Checkout(ctx, f.cart(t, svc, f.premium))
	require.Nil(t, order)
	assert.ErrorIs(t, err, switcher.ErrFailedToCheckout)
	assert.ErrorIs(t, err, errCommit)

	orders, err := f.repo.OrdersForSubscription(ctx, f.sub.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, f.parent.ID, orders[0].ID)
	assert.Empty(t, pendingItems(f.reload(t)))

	expected := `
# HELP switchkit_switch_checkouts_total Switch orders recorded, by result.
# TYPE switchkit_switch_checkouts_total counter
switchkit_switch_checkouts_total{result="error"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "switchkit_switch_checkouts_total"))
}

// flakyRepo fails the commit of the next failures transactions.
type flakyRepo struct {
	*subscription.MemoryStore
	failures *atomic.Int32
}

func (r flakyRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx subscription.Repository) error) error {
	return r.MemoryStore.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if r.failures.Add(-1) >= 0 {
			return errCommit
		}
		return nil
	})
}

func TestCompleteSwitches_RetryAfterFailedCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	svc := f.service(t, apr16)
	order, err := svc.Checkout(ctx, f.cart(t, svc, f.premium))
	require.NoError(t, err)

	order.Status = subscription.OrderStatusProcessing
	order.PaidAt = apr16
	require.NoError(t, f.repo.SaveOrder(ctx, order))

	failures := &atomic.Int32{}
	failures.Store(1)
	flaky, err := switcher.New(flakyRepo{MemoryStore: f.repo, failures: failures}, f.catalog,
		switcher.WithClock(func() time.Time { return apr16 }))
	require.NoError(t, err)

	err = flaky.CompleteSwitches(ctx, order.ID)
	assert.ErrorIs(t, err, switcher.ErrFailedToComplete)
	assert.ErrorIs(t, err, errCommit)

	sub := f.reload(t)
	live := sub.LiveProductItems()
	require.Len(t, live, 1, "old line stays live")
	assert.Equal(t, f.item.ID, live[0].ID)
	assert.Len(t, pendingItems(sub), 1)

	stored, err := f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.OrderStatusProcessing, stored.Status)
	assert.False(t, stored.SwitchCompleted)

	require.NoError(t, flaky.CompleteSwitches(ctx, order.ID))
	require.NoError(t, flaky.CompleteSwitches(ctx, order.ID))

	sub = f.reload(t)
	live = sub.LiveProductItems()
	require.Len(t, live, 1)
	assert.Equal(t, f.premium.ID, live[0].ProductID)
	assert.Empty(t, pendingItems(sub))
	assert.Len(t, sub.Items, 2, "old and new line only")
	assert.True(t, dec("20").Equal(sub.Total))

	stored, err = f.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.SwitchCompleted)
}

func TestCheckout_NoSwitchItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.service(t, apr16)

	_, err := svc.Checkout(context.Background(), &cart.Cart{ID: uuid.New(), CustomerID: f.customer})
	assert.ErrorIs(t, err, switcher.ErrNoSwitchItems)
}

func TestCompleteSwitches_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unpaid order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := f.service(t, apr16)
		order, err := svc.Checkout(ctx, f.cart(t, svc, f.premium))
		require.NoError(t, err)

		err = svc.CompleteSwitches(ctx, order.ID)
		assert.ErrorIs(t, err, switcher.ErrOrderNotPaid)
		assert.ErrorIs(t, err, switcher.ErrFailedToComplete)
		assert.Len(t, pendingItems(f.reload(t)), 1)
	})

	t.Run("not a switch order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := f.service(t, apr16)

		assert.ErrorIs(t, svc.CompleteSwitches(ctx, f.parent.ID), switcher.ErrNotSwitchOrder)
	})

	t.Run("missing order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		svc := f.service(t, apr16)

		assert.ErrorIs(t, svc.CompleteSwitches(ctx, uuid.New()), subscription.ErrOrderNotFound)
	})
}

func TestDiscardSwitch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	svc := f.service(t, apr16)
	order, err := svc.Checkout(ctx, f.cart(t, svc, f.premium))
	require.NoError(t, err)

	_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventCancel)
	require.NoError(t, err)

	sub := f.reload(t)
	assert.Empty(t, pendingItems(sub))
	require.Len(t, sub.LiveProductItems(), 1)
	assert.Equal(t, f.item.ID, sub.LiveProductItems()[0].ID)

	require.NoError(t, svc.DiscardSwitch(ctx, order.ID), "discarding twice is a no-op")
}
