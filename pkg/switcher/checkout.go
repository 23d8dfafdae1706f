package switcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// Checkout records a switch order for the switch items of c.
//
// The order and its line items are saved first. Then, in one transaction, every
// referenced subscription receives pending lines and the order receives the
// SwitchPlan that CompleteSwitches applies once the order is paid. Other unpaid
// switch orders of the same subscriptions are cancelled. If anything fails the
// order is deleted and no subscription is changed.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart) (*subscription.Order, error) {
	if err := s.PrepareCart(ctx, c); err != nil {
		return nil, err
	}
	items := c.SwitchItems()
	if len(items) == 0 {
		return nil, ErrNoSwitchItems
	}
	now := s.now().UTC()

	products, err := s.cartProducts(ctx, items)
	if err != nil {
		return nil, err
	}
	order := newSwitchOrder(c, items, products, now)
	ctx = logger.WithOrderID(ctx, order.ID)

	if err := s.repo.SaveOrder(ctx, order); err != nil {
		s.metrics.observeCheckout(err)
		return nil, errors.Join(ErrFailedToCheckout, err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		return s.recordPlan(ctx, tx, c, order, products, now)
	})
	if err != nil {
		if derr := s.repo.DeleteOrder(ctx, order.ID); derr != nil {
			err = errors.Join(err, derr)
		}
		s.metrics.observeCheckout(err)
		s.logger.ErrorContext(ctx, "switch checkout failed", logger.Error(err))
		return nil, errors.Join(ErrFailedToCheckout, err)
	}
	s.metrics.observeCheckout(nil)
	s.logger.InfoContext(ctx, "switch order recorded",
		logger.CustomerID(order.CustomerID),
		slog.Int("subscriptions", len(order.SwitchPlan)),
		slog.String("total", order.Total.String()))

	s.consumeCart(ctx, c)
	return order, nil
}

func (s *Service) cartProducts(ctx context.Context, items []*cart.Item) (map[uuid.UUID]subscription.Product, error) {
	products := make(map[uuid.UUID]subscription.Product, len(items))
	for _, ci := range items {
		p, err := s.catalog.Product(ctx, ci.ProductID)
		if err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	return products, nil
}

// consumeCart drops the checked out switch items. Other items stay in the cart.
func (s *Service) consumeCart(ctx context.Context, c *cart.Cart) {
	c.Items = slices.DeleteFunc(c.Items, func(i cart.Item) bool { return i.IsSwitch() })
	if s.carts == nil {
		return
	}
	var err error
	if len(c.Items) == 0 {
		err = s.carts.Delete(ctx, c.ID)
	} else {
		c.UpdatedAt = s.now().UTC()
		err = s.carts.Save(ctx, c)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to update cart after checkout", logger.Error(err))
	}
}

func newSwitchOrder(c *cart.Cart, items []*cart.Item, products map[uuid.UUID]subscription.Product, now time.Time) *subscription.Order {
	order := &subscription.Order{
		ID:              uuid.New(),
		CustomerID:      c.CustomerID,
		Kind:            subscription.OrderKindSwitch,
		Status:          subscription.OrderStatusPending,
		Currency:        c.Currency,
		BillingAddress:  c.BillingAddress,
		ShippingAddress: c.ShippingAddress,
		PaymentMethod:   c.PaymentMethod,
		CreatedAt:       now,
		SubscriptionIDs: lo.Uniq(lo.Map(items, func(ci *cart.Item, _ int) uuid.UUID { return ci.Switch.SubscriptionID })),
	}
	for _, ci := range items {
		order.Items = append(order.Items, orderLine(ci, products[ci.ProductID]))
	}
	for _, adj := range c.Adjustments {
		order.Items = append(order.Items, adjustmentLine(adj, adj.Type))
	}
	order.CalculateTotal()
	return order
}

// orderLine charges the staged sign-up fee, which includes any upgrade cost,
// plus the recurring price when it is due now. SignUpFee keeps only the
// product's fee so later switches can tell it apart from prorated amounts.
func orderLine(ci *cart.Item, p subscription.Product) subscription.LineItem {
	qty := decimal.NewFromInt(int64(ci.Quantity))
	total := ci.SignUpFeeTotal()
	if ci.Switch.ChargesNow() {
		total = total.Add(ci.RecurringTotal())
	}
	fee := ci.SignUpFee
	if ci.Switch.UpgradeCost.IsPositive() {
		fee = decimal.Max(decimal.Zero, fee.Sub(ci.Switch.UpgradeCost.Div(qty)))
	}
	line := productLine(p, ci.Quantity, subscription.ItemTypeLineItem)
	line.Subtotal = total
	line.Total = total
	line.SignUpFee = fee
	return line
}

func productLine(p subscription.Product, qty int, t subscription.ItemType) subscription.LineItem {
	line := subscription.LineItem{
		ID:        uuid.New(),
		Type:      t,
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
	}
	if p.IsVariation() {
		line.ProductID = p.ParentID
		line.VariationID = p.ID
	}
	return line
}

func adjustmentLine(adj cart.Adjustment, t subscription.ItemType) subscription.LineItem {
	return subscription.LineItem{
		ID:       uuid.New(),
		Type:     t,
		Name:     adj.Name,
		Code:     adj.Code,
		Subtotal: adj.Total,
		Total:    adj.Total,
		Tax:      adj.Tax,
	}
}

func (s *Service) recordPlan(ctx context.Context, tx subscription.Repository, c *cart.Cart,
	order *subscription.Order, products map[uuid.UUID]subscription.Product, now time.Time,
) error {
	groups := lo.GroupBy(c.SwitchItems(), func(ci *cart.Item) uuid.UUID { return ci.Switch.SubscriptionID })
	subIDs := slices.SortedFunc(maps.Keys(groups), func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })

	for _, id := range subIDs {
		if err := s.cancelOtherSwitchOrders(ctx, tx, id, order.ID, now); err != nil {
			return err
		}
	}

	plan := make(subscription.SwitchPlan, len(subIDs))
	for _, id := range subIDs {
		sub, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		items := groups[id]
		changes := &subscription.SubscriptionChanges{}
		inPlace := s.inPlaceKeys(sub, items, now)
		updated := false

		for _, ci := range items {
			existing, ok := sub.ItemByID(ci.Switch.ItemID)
			if !ok {
				return fmt.Errorf("%w: %s", subscription.ErrItemNotFound, ci.Switch.ItemID)
			}
			product := products[ci.ProductID]
			if inPlace[ci.Key] {
				s.switchInPlace(sub, ci, product, *existing, changes, now)
				updated = true
				continue
			}
			created, err := s.createSubscription(ctx, tx, c, sub, ci, product, order, now)
			if err != nil {
				return err
			}
			changes.Switches = append(changes.Switches, subscription.SwitchChange{
				RemoveItemID:      existing.ID,
				NewSubscriptionID: created.ID,
				NewItemID:         created.Items[0].ID,
			})
			order.SubscriptionIDs = append(order.SubscriptionIDs, created.ID)
		}
		if updated {
			stageAdjustments(sub, c, changes)
		}
		if err := validateDates(sub, changes, now); err != nil {
			return err
		}

		sub.UpdatedAt = now
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}
		plan[sub.ID] = changes
	}

	order.SwitchPlan = plan
	return tx.SaveOrder(ctx, order)
}

// nextPaymentFor resolves the first renewal of the new plan. When the recurring
// price is charged now the next one is a full new cycle away. Zero means no renewal.
func nextPaymentFor(ci *cart.Item, now time.Time) time.Time {
	if ci.Switch.NoNextPayment {
		return time.Time{}
	}
	if !ci.Switch.ChargesNow() {
		return ci.Switch.FirstPayment
	}
	return subscription.AddTime(ci.Interval, ci.Period, now)
}

// inPlaceKeys selects the items that update the subscription itself: those on
// the same schedule and dates, and the last item when every live line of the
// subscription moves to another schedule.
func (s *Service) inPlaceKeys(sub *subscription.Subscription, items []*cart.Item, now time.Time) map[string]bool {
	keys := make(map[string]bool, len(items))
	var moving []*cart.Item
	for _, ci := range items {
		if sub.HasSchedule(ci.Schedule()) &&
			subscription.SameDate(sub.NextPayment, nextPaymentFor(ci, now)) &&
			subscription.SameDate(sub.End, ci.Switch.End) {
			keys[ci.Key] = true
			continue
		}
		moving = append(moving, ci)
	}
	if len(moving) > 0 && len(moving) == len(sub.LiveProductItems()) {
		keys[moving[len(moving)-1].Key] = true
	}
	return keys
}

func (s *Service) switchInPlace(sub *subscription.Subscription, ci *cart.Item, p subscription.Product,
	existing subscription.LineItem, changes *subscription.SubscriptionChanges, now time.Time,
) {
	line := productLine(p, ci.Quantity, subscription.ItemTypeLineItem.Pending())
	line.Subtotal = ci.RecurringTotal()
	line.Total = ci.RecurringTotal()
	line.SignUpFee = p.SignUpFee
	line.SwitchedFromItemID = existing.ID
	sub.Items = append(sub.Items, line)

	changes.Switches = append(changes.Switches, subscription.SwitchChange{
		AddItemID:    line.ID,
		RemoveItemID: existing.ID,
	})
	if !sub.HasSchedule(ci.Schedule()) {
		sch := ci.Schedule()
		changes.BillingSchedule = &sch
	}
	if next := nextPaymentFor(ci, now); !subscription.SameDate(next, sub.NextPayment) {
		setDate(changes, subscription.DateNextPayment, next)
	}
	if !subscription.SameDate(ci.Switch.End, sub.End) {
		setDate(changes, subscription.DateEnd, ci.Switch.End)
	}
	if sub.IsInTrial(now) && ci.TrialLength == 0 {
		setDate(changes, subscription.DateTrialEnd, time.Time{})
	}
}

func setDate(changes *subscription.SubscriptionChanges, t subscription.DateType, v time.Time) {
	if v.IsZero() {
		delete(changes.Dates.Update, t)
		if !slices.Contains(changes.Dates.Delete, t) {
			changes.Dates.Delete = append(changes.Dates.Delete, t)
		}
		return
	}
	changes.Dates.Delete = slices.DeleteFunc(changes.Dates.Delete, func(d subscription.DateType) bool { return d == t })
	if changes.Dates.Update == nil {
		changes.Dates.Update = make(map[subscription.DateType]time.Time)
	}
	changes.Dates.Update[t] = v.UTC()
}

// stageAdjustments replaces the subscription's coupons with the cart's recurring
// coupons. Fees and shipping are replaced only when the cart has recurring ones.
func stageAdjustments(sub *subscription.Subscription, c *cart.Cart, changes *subscription.SubscriptionChanges) {
	stage := func(t subscription.ItemType, ch *subscription.ItemChanges, always bool) {
		adds := c.RecurringAdjustments(t)
		if !always && len(adds) == 0 {
			return
		}
		for _, item := range sub.ItemsOfType(t) {
			ch.Remove = append(ch.Remove, item.ID)
		}
		for _, adj := range adds {
			line := adjustmentLine(adj, t.Pending())
			sub.Items = append(sub.Items, line)
			ch.Add = append(ch.Add, line.ID)
		}
	}
	stage(subscription.ItemTypeCoupon, &changes.Coupons, true)
	stage(subscription.ItemTypeFee, &changes.Fees, false)
	stage(subscription.ItemTypeShipping, &changes.Shipping, false)
}

// createSubscription starts a pending subscription for an item whose schedule
// can not be merged into the subscription it replaces.
func (s *Service) createSubscription(ctx context.Context, tx subscription.Repository, c *cart.Cart,
	from *subscription.Subscription, ci *cart.Item, p subscription.Product, order *subscription.Order, now time.Time,
) (*subscription.Subscription, error) {
	line := productLine(p, ci.Quantity, subscription.ItemTypeLineItem)
	line.Subtotal = ci.RecurringTotal()
	line.Total = ci.RecurringTotal()
	line.SignUpFee = p.SignUpFee
	line.SwitchedFromItemID = ci.Switch.ItemID

	sub := &subscription.Subscription{
		ID:              uuid.New(),
		CustomerID:      from.CustomerID,
		Status:          subscription.StatusPending,
		Currency:        cmp.Or(order.Currency, from.Currency),
		Period:          ci.Period,
		Interval:        ci.Interval,
		Start:           now,
		NextPayment:     nextPaymentFor(ci, now),
		End:             ci.Switch.End,
		ParentOrderID:   order.ID,
		Items:           []subscription.LineItem{line},
		BillingAddress:  from.BillingAddress,
		ShippingAddress: from.ShippingAddress,
		PaymentMethod:   from.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !order.BillingAddress.IsZero() {
		sub.BillingAddress = order.BillingAddress
	}
	if !order.ShippingAddress.IsZero() {
		sub.ShippingAddress = order.ShippingAddress
	}
	if ci.TrialLength > 0 {
		sub.TrialEnd = subscription.AddTime(ci.TrialLength, ci.TrialPeriod, now)
	}
	for _, t := range []subscription.ItemType{subscription.ItemTypeCoupon, subscription.ItemTypeFee, subscription.ItemTypeShipping} {
		for _, adj := range c.RecurringAdjustments(t) {
			sub.Items = append(sub.Items, adjustmentLine(adj, t))
		}
	}
	sub.CalculateTotals()
	if err := validateDates(sub, &subscription.SubscriptionChanges{}, now); err != nil {
		return nil, err
	}
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// validateDates checks the dates the subscription would have after changes:
// the next payment is in the future, after the trial end and before the end date.
func validateDates(sub *subscription.Subscription, changes *subscription.SubscriptionChanges, now time.Time) error {
	probe := &subscription.Subscription{TrialEnd: sub.TrialEnd, NextPayment: sub.NextPayment, End: sub.End}
	applyDates(probe, changes.Dates)

	next, trial, end := probe.NextPayment, probe.TrialEnd, probe.End
	if changes.Dates.Update != nil {
		if _, ok := changes.Dates.Update[subscription.DateNextPayment]; ok && !next.After(now) {
			return fmt.Errorf("%w: next payment %s is not in the future", ErrInvalidDates, next.Format(time.DateTime))
		}
	}
	if !next.IsZero() && !trial.IsZero() && next.Before(trial) {
		return fmt.Errorf("%w: next payment is before the trial end", ErrInvalidDates)
	}
	if !end.IsZero() {
		if !next.IsZero() && !end.After(next) {
			return fmt.Errorf("%w: end date must be after the next payment", ErrInvalidDates)
		}
		if !trial.IsZero() && !end.After(trial) {
			return fmt.Errorf("%w: end date must be after the trial end", ErrInvalidDates)
		}
	}
	return nil
}

func applyDates(sub *subscription.Subscription, dates subscription.DateChanges) {
	for t, v := range dates.Update {
		sub.SetDate(t, v)
	}
	for _, t := range dates.Delete {
		sub.SetDate(t, time.Time{})
	}
}
