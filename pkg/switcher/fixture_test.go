package switcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
	"github.com/dmitrymomot/switchkit/pkg/switcher"
)

var (
	apr1  = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	apr11 = time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC)
	apr15 = time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	apr16 = time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC)
	may1  = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func plan(name, price string, period subscription.BillingPeriod) subscription.Product {
	return subscription.Product{
		ID:       uuid.New(),
		Name:     name,
		Price:    dec(price),
		Period:   period,
		Interval: 1,
		Virtual:  true,
		GroupID:  "plans",
	}
}

// fixture is one active monthly subscription paid on April 1st with the next
// payment on May 1st.
type fixture struct {
	repo     *subscription.MemoryStore
	catalog  *subscription.MemoryCatalog
	customer uuid.UUID

	monthly subscription.Product
	weekly  subscription.Product
	premium subscription.Product
	budget  subscription.Product

	sub    *subscription.Subscription
	item   subscription.LineItem
	parent *subscription.Order
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     subscription.NewMemoryStore(),
		customer: uuid.New(),
		monthly:  plan("Monthly", "10", subscription.PeriodMonth),
		weekly:   plan("Weekly", "5", subscription.PeriodWeek),
		premium:  plan("Premium", "20", subscription.PeriodMonth),
		budget:   plan("Budget", "5", subscription.PeriodMonth),
	}
	f.catalog = subscription.NewMemoryCatalog(f.monthly, f.weekly, f.premium, f.budget)
	f.subscribe(t, f.monthly)
	return f
}

// subscribe replaces the fixture subscription with one for p.
func (f *fixture) subscribe(t *testing.T, p subscription.Product) {
	t.Helper()
	ctx := context.Background()

	paid := p.Price.Add(p.SignUpFee)
	next := subscription.AddTime(p.Interval, p.Period, apr1)
	var trialEnd time.Time
	if p.HasTrial() {
		paid = p.SignUpFee
		trialEnd = subscription.AddTime(p.TrialLength, p.TrialPeriod, apr1)
		next = trialEnd
	}

	f.item = subscription.LineItem{
		ID:        uuid.New(),
		Type:      subscription.ItemTypeLineItem,
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  1,
		Subtotal:  p.Price,
		Total:     p.Price,
		SignUpFee: p.SignUpFee,
	}
	f.sub = &subscription.Subscription{
		ID:          uuid.New(),
		CustomerID:  f.customer,
		Status:      subscription.StatusActive,
		Currency:    "USD",
		Period:      p.Period,
		Interval:    p.Interval,
		Start:       apr1,
		TrialEnd:    trialEnd,
		NextPayment: next,
		Items:       []subscription.LineItem{f.item},
		CreatedAt:   apr1,
	}
	if p.Length > 0 {
		f.sub.End = subscription.AddTime(p.Length, p.Period, apr1)
	}
	f.sub.CalculateTotals()

	f.parent = &subscription.Order{
		ID:              uuid.New(),
		CustomerID:      f.customer,
		Kind:            subscription.OrderKindParent,
		Status:          subscription.OrderStatusCompleted,
		Currency:        "USD",
		SubscriptionIDs: []uuid.UUID{f.sub.ID},
		Items: []subscription.LineItem{{
			ID:        uuid.New(),
			Type:      subscription.ItemTypeLineItem,
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  1,
			Subtotal:  paid,
			Total:     paid,
			SignUpFee: p.SignUpFee,
		}},
		Total:     paid,
		CreatedAt: apr1,
		PaidAt:    apr1,
	}
	require.NoError(t, f.repo.SaveSubscription(ctx, f.sub))
	require.NoError(t, f.repo.SaveOrder(ctx, f.parent))
}

func (f *fixture) service(t *testing.T, now time.Time, opts ...switcher.Option) *switcher.Service {
	t.Helper()
	opts = append([]switcher.Option{switcher.WithClock(func() time.Time { return now })}, opts...)
	svc, err := switcher.New(f.repo, f.catalog, opts...)
	require.NoError(t, err)
	return svc
}

func (f *fixture) cart(t *testing.T, svc *switcher.Service, to subscription.Product) *cart.Cart {
	t.Helper()
	c := &cart.Cart{ID: uuid.New(), CustomerID: f.customer, Currency: "USD"}
	_, err := svc.AddSwitch(context.Background(), c, switcher.SwitchRequest{
		SubscriptionID: f.sub.ID,
		ItemID:         f.item.ID,
		ProductID:      to.ID,
		Quantity:       1,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) reload(t *testing.T) *subscription.Subscription {
	t.Helper()
	sub, err := f.repo.GetSubscription(context.Background(), f.sub.ID)
	require.NoError(t, err)
	return sub
}

func switchItem(t *testing.T, c *cart.Cart) *cart.Item {
	t.Helper()
	items := c.SwitchItems()
	require.Len(t, items, 1)
	return items[0]
}
