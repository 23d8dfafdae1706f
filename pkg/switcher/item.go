package switcher

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// SwitchType classifies a switch by comparing prices per day.
type SwitchType string

const (
	Upgrade    SwitchType = "upgrade"
	Downgrade  SwitchType = "downgrade"
	Crossgrade SwitchType = "crossgrade"
)

// ParseSwitchType returns InvalidSwitchTypeError for unknown values.
func ParseSwitchType(s string) (SwitchType, error) {
	switch t := SwitchType(s); t {
	case Upgrade, Downgrade, Crossgrade:
		return t, nil
	}
	return "", &InvalidSwitchTypeError{Value: s}
}

// fullyReducedTolerance is how close the renewal projected from the last switch
// must land to the recorded next payment for the switch to count as the new baseline.
const fullyReducedTolerance = time.Hour

// switchTypePrecision is the number of decimals compared when classifying a switch.
const switchTypePrecision = 8

// Item computes the proration inputs of one cart item that replaces a subscription line.
// Values are computed lazily and cached for the lifetime of the Item, which is one
// totals calculation pass.
type Item struct {
	CartItem        *cart.Item
	Subscription    *subscription.Subscription
	Existing        subscription.LineItem
	Product         subscription.Product
	ExistingProduct subscription.Product
	// Orders are the subscription's related orders, newest first.
	Orders []*subscription.Order

	now      time.Time
	settings Settings
	hooks    *Hooks

	lastOrderPaid    cached[time.Time]
	fullyReduced     cached[bool]
	totalPaid        cached[decimal.Decimal]
	daysInOldCycle   cached[int]
	daysInNewCycle   cached[int]
	oldPricePerDay   cached[decimal.Decimal]
	newPricePerDay   cached[decimal.Decimal]
	switchType       cached[SwitchType]
	switchTypeErr    error
	completedPayment cached[int]
}

type cached[T any] struct {
	value T
	ok    bool
}

func (c *cached[T]) get(compute func() T) T {
	if !c.ok {
		c.value = compute()
		c.ok = true
	}
	return c.value
}

// NewItem builds the calculator for one switch. orders must be newest first.
func NewItem(ci *cart.Item, sub *subscription.Subscription, existing subscription.LineItem,
	product, existingProduct subscription.Product, orders []*subscription.Order,
	now time.Time, settings Settings, hooks *Hooks,
) *Item {
	if hooks == nil {
		hooks = &Hooks{}
	}
	return &Item{
		CartItem:        ci,
		Subscription:    sub,
		Existing:        existing,
		Product:         product,
		ExistingProduct: existingProduct,
		Orders:          orders,
		now:             now.UTC(),
		settings:        settings,
		hooks:           hooks,
	}
}

// Now is the calculation time.
func (i *Item) Now() time.Time { return i.now }

func (i *Item) paid(o *subscription.Order) bool {
	return o.IsPaid(i.settings.PaymentCompleteStatuses...)
}

func (i *Item) lastRegularOrder() *subscription.Order {
	o, _ := lo.Find(i.Orders, func(o *subscription.Order) bool { return o.IsRegular() && i.paid(o) })
	return o
}

func (i *Item) lastSwitchOrder() *subscription.Order {
	o, _ := lo.Find(i.Orders, func(o *subscription.Order) bool {
		return o.Kind == subscription.OrderKindSwitch && i.paid(o)
	})
	return o
}

// IsSwitchAfterFullyReducedPrepaidTerm reports whether the last switch moved the
// billing baseline: it was paid after the last regular order and the renewal
// projected from its paid date matches the recorded next payment.
func (i *Item) IsSwitchAfterFullyReducedPrepaidTerm() bool {
	return i.fullyReduced.get(func() bool {
		sw := i.lastSwitchOrder()
		if sw == nil || i.Subscription.NextPayment.IsZero() {
			return false
		}
		if regular := i.lastRegularOrder(); regular != nil && sw.PaidOrCreatedAt().Before(regular.PaidOrCreatedAt()) {
			return false
		}
		projected := subscription.AddTime(i.Subscription.Interval, i.Subscription.Period, sw.PaidOrCreatedAt())
		diff := projected.Sub(i.Subscription.NextPayment)
		return diff.Abs() <= fullyReducedTolerance
	})
}

// LastOrderPaidTime is the start of the current paid period: the paid date of
// the last regular order, or of the last switch when it fully reduced the term.
// Falls back to the subscription start.
func (i *Item) LastOrderPaidTime() time.Time {
	return i.lastOrderPaid.get(func() time.Time {
		if i.IsSwitchAfterFullyReducedPrepaidTerm() {
			return i.lastSwitchOrder().PaidOrCreatedAt().UTC()
		}
		if o := i.lastRegularOrder(); o != nil {
			return o.PaidOrCreatedAt().UTC()
		}
		return i.Subscription.Start.UTC()
	})
}

// NextPaymentTimestamp is the next payment, or the end date when no payment is scheduled.
func (i *Item) NextPaymentTimestamp() time.Time {
	if !i.Subscription.NextPayment.IsZero() {
		return i.Subscription.NextPayment.UTC()
	}
	return i.Subscription.End.UTC()
}

// DaysSinceLastPayment is the number of whole days since LastOrderPaidTime.
func (i *Item) DaysSinceLastPayment() int {
	return int(math.Floor(subscription.DaysBetween(i.LastOrderPaidTime(), i.now)))
}

// DaysUntilNextPayment is the number of started days until the next payment, never negative.
func (i *Item) DaysUntilNextPayment() int {
	next := i.NextPaymentTimestamp()
	if next.IsZero() {
		return 0
	}
	return max(0, int(math.Ceil(subscription.DaysBetween(i.now, next))))
}

// IsSwitchDuringTrial reports whether the subscription is still in its free trial.
func (i *Item) IsSwitchDuringTrial() bool {
	return i.Subscription.IsInTrial(i.now)
}

// TrialPeriodsMatch compares the trial of the old and new products.
func (i *Item) TrialPeriodsMatch() bool {
	return i.Product.TrialMatches(i.ExistingProduct)
}

// chainProductIDs returns the products this line went through, walking back
// the SwitchedFromItemID links kept on the subscription.
func (i *Item) chainProductIDs() []uuid.UUID {
	ids := []uuid.UUID{i.Existing.CanonicalProductID()}
	seen := map[uuid.UUID]bool{i.Existing.ID: true}
	from := i.Existing.SwitchedFromItemID
	for from != uuid.Nil && !seen[from] {
		seen[from] = true
		prev, ok := i.Subscription.ItemByID(from)
		if !ok {
			break
		}
		ids = append(ids, prev.CanonicalProductID())
		from = prev.SwitchedFromItemID
	}
	return ids
}

// TotalPaidForCurrentPeriod sums what was paid for this line since the start of the
// current period, excluding sign-up fees. It walks newest first through switch and
// early renewal orders down to the baseline order. When nothing was paid it falls
// back to the line's recurring total.
func (i *Item) TotalPaidForCurrentPeriod() decimal.Decimal {
	return i.totalPaid.get(func() decimal.Decimal {
		products := i.chainProductIDs()
		baseline := i.LastOrderPaidTime()
		total, found := decimal.Zero, false

		for _, o := range i.Orders {
			if !i.paid(o) {
				continue
			}
			if o.PaidOrCreatedAt().Before(baseline) {
				break
			}
			line, ok := lo.Find(o.Items, func(l subscription.LineItem) bool {
				return l.Type == subscription.ItemTypeLineItem && lo.Contains(products, l.CanonicalProductID())
			})
			if ok {
				amount := line.Total
				if i.settings.PricesIncludeTax {
					amount = amount.Add(line.Tax)
				}
				amount = amount.Sub(line.SignUpFee.Mul(decimal.NewFromInt(int64(line.Quantity))))
				total = total.Add(decimal.Max(amount, decimal.Zero))
				found = true
			}
			if o.IsRegular() || (o.Kind == subscription.OrderKindSwitch && i.IsSwitchAfterFullyReducedPrepaidTerm()) {
				break
			}
		}
		if !found {
			total = i.Existing.Total
			if i.settings.PricesIncludeTax {
				total = total.Add(i.Existing.Tax)
			}
		}
		return total
	})
}

func (i *Item) isSynced() bool {
	return i.Product.Synced || i.ExistingProduct.Synced
}

func (i *Item) inFirstCycle() bool {
	return !lo.ContainsBy(i.Orders, func(o *subscription.Order) bool {
		return o.Kind == subscription.OrderKindRenewal && i.paid(o)
	})
}

// DaysInOldCycle is the length in days of the period the customer paid for.
// A full billing cycle is used for synced products still in their first
// (partial) cycle and for switches during an unpaid trial.
func (i *Item) DaysInOldCycle() int {
	return i.daysInOldCycle.get(func() int {
		sub := i.Subscription
		useCycle := (i.isSynced() && !i.settings.SyncProrateFirstRenewal && i.inFirstCycle()) ||
			(i.IsSwitchDuringTrial() && i.TotalPaidForCurrentPeriod().IsZero())
		if useCycle {
			return subscription.RoundDays(subscription.DaysInCycle(sub.Period, sub.Interval))
		}
		next := i.NextPaymentTimestamp()
		if next.IsZero() {
			return 0
		}
		return max(0, subscription.RoundDays(subscription.DaysBetween(i.LastOrderPaidTime(), next)))
	})
}

// OldPricePerDay is the amount paid per day of the current period.
func (i *Item) OldPricePerDay() decimal.Decimal {
	return i.oldPricePerDay.get(func() decimal.Decimal {
		days := i.DaysInOldCycle()
		if days == 0 {
			return i.TotalPaidForCurrentPeriod()
		}
		return i.TotalPaidForCurrentPeriod().Div(decimal.NewFromInt(int64(days)))
	})
}

// DaysInNewCycle projects the new plan's renewal from LastOrderPaidTime.
// It equals DaysInOldCycle when the two differ by at most a day or when the
// switch happens during a matching trial.
func (i *Item) DaysInNewCycle() int {
	return i.daysInNewCycle.get(func() int {
		from := i.LastOrderPaidTime()
		renewal := subscription.AddTime(i.Product.Interval, i.Product.Period, from)
		days := subscription.RoundDays(subscription.DaysBetween(from, renewal))
		if from.IsZero() {
			days = subscription.RoundDays(subscription.DaysInCycle(i.Product.Period, i.Product.Interval))
		}
		old := i.DaysInOldCycle()
		if abs(old-days) <= 1 || (i.IsSwitchDuringTrial() && i.TrialPeriodsMatch()) {
			return old
		}
		return days
	})
}

// NewPricePerDay is the new plan's price for the whole quantity divided by
// DaysInNewCycle. It is zero during a trial matching the new product's trial.
func (i *Item) NewPricePerDay() decimal.Decimal {
	return i.newPricePerDay.get(func() decimal.Decimal {
		if i.IsSwitchDuringTrial() && i.TrialPeriodsMatch() {
			return decimal.Zero
		}
		price := i.Product.Price.Mul(decimal.NewFromInt(int64(i.CartItem.Quantity)))
		days := i.DaysInNewCycle()
		if days == 0 {
			return price
		}
		return price.Div(decimal.NewFromInt(int64(days)))
	})
}

// SwitchType compares NewPricePerDay with OldPricePerDay and applies the SwitchType hook.
func (i *Item) SwitchType(ctx context.Context) (SwitchType, error) {
	t := i.switchType.get(func() SwitchType {
		newPPD, oldPPD := i.NewPricePerDay(), i.OldPricePerDay()
		diff := newPPD.Sub(oldPPD).Round(switchTypePrecision)
		computed := Crossgrade
		switch {
		case diff.IsPositive():
			computed = Upgrade
		case diff.IsNegative() && !newPPD.IsNegative():
			computed = Downgrade
		}
		if i.hooks.SwitchType == nil {
			return computed
		}
		t, err := ParseSwitchType(i.hooks.SwitchType(ctx, i, computed))
		i.switchTypeErr = err
		return t
	})
	return t, i.switchTypeErr
}

// CompletedPayments counts paid parent and renewal orders.
func (i *Item) CompletedPayments() int {
	return i.completedPayment.get(func() int {
		return lo.CountBy(i.Orders, func(o *subscription.Order) bool {
			return (o.Kind == subscription.OrderKindParent || o.Kind == subscription.OrderKindRenewal) && i.paid(o)
		})
	})
}

// EndTimestamp is the end of the new plan, counted from LastOrderPaidTime using
// the staged length. Zero when the plan never expires.
func (i *Item) EndTimestamp() time.Time {
	if i.CartItem.Length <= 0 {
		return time.Time{}
	}
	return subscription.AddTime(i.CartItem.Length, i.CartItem.Period, i.LastOrderPaidTime())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
