package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/switchkit/pkg/audit"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// Note actions recorded through the audit logger.
const (
	NoteSubscriptionSwitched = "subscription.switched"
	NoteOrderSwitched        = "order.switch_completed"
)

type switchNote struct {
	subscriptionID uuid.UUID
	message        string
}

// CompleteSwitches applies the SwitchPlan of a paid switch order (phase two).
//
// The order row is locked for the whole transaction and SwitchCompleted is set
// in the same commit, so concurrent or repeated calls apply the plan once.
// Calling it for an order already completed is a no-op.
func (s *Service) CompleteSwitches(ctx context.Context, orderID uuid.UUID) error {
	start := time.Now()
	ctx = logger.WithOrderID(ctx, orderID)

	var (
		ev    *SwitchCompletedEvent
		notes []switchNote
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		ev, notes = nil, nil

		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Kind != subscription.OrderKindSwitch {
			return ErrNotSwitchOrder
		}
		if order.SwitchCompleted {
			return nil
		}
		if !order.IsPaid(s.settings.PaymentCompleteStatuses...) {
			return fmt.Errorf("%w: status %s", ErrOrderNotPaid, order.Status)
		}

		now := s.now().UTC()
		completed := &SwitchCompletedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			Email:         order.BillingAddress.Email,
			Currency:      order.Currency,
			OrderTotal:    order.Total,
			PaymentMethod: order.PaymentMethod,
			CompletedAt:   now,
		}
		for _, id := range order.SwitchPlan.SubscriptionIDs() {
			summary, subNotes, err := s.applyChanges(ctx, tx, order, id, order.SwitchPlan[id], now)
			if err != nil {
				return err
			}
			completed.Subscriptions = append(completed.Subscriptions, summary)
			notes = append(notes, subNotes...)
		}

		order.SwitchCompleted = true
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		ev = completed
		return nil
	})
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.observeCommit(resultError, elapsed)
		s.logger.ErrorContext(ctx, "failed to complete switch", logger.Error(err), logger.Duration(elapsed))
		return errors.Join(ErrFailedToComplete, err)
	}
	if ev == nil {
		s.metrics.observeCommit(resultSkipped, elapsed)
		s.logger.DebugContext(ctx, "switch already completed")
		return nil
	}

	s.writeNotes(ctx, orderID, notes)
	s.emit(ctx, *ev)
	s.metrics.observeCommit(resultSuccess, elapsed)
	s.logger.InfoContext(ctx, "switch completed",
		logger.CustomerID(ev.CustomerID),
		slog.Int("subscriptions", len(ev.Subscriptions)),
		logger.Duration(elapsed))
	return nil
}

func (s *Service) applyChanges(ctx context.Context, tx subscription.Repository, order *subscription.Order,
	id uuid.UUID, ch *subscription.SubscriptionChanges, now time.Time,
) (SwitchedSubscription, []switchNote, error) {
	sub, err := tx.GetSubscription(ctx, id)
	if err != nil {
		return SwitchedSubscription{}, nil, err
	}
	summary := SwitchedSubscription{ID: sub.ID}
	var notes []switchNote

	for _, sw := range ch.Switches {
		old, ok := sub.ItemByID(sw.RemoveItemID)
		if !ok {
			return summary, nil, fmt.Errorf("%w: %s on subscription %s", subscription.ErrItemNotFound, sw.RemoveItemID, sub.ID)
		}
		var to subscription.LineItem
		if sw.NewSubscriptionID != uuid.Nil {
			created, err := s.activateSubscription(ctx, tx, sw.NewSubscriptionID, order, now)
			if err != nil {
				return summary, nil, err
			}
			item, ok := created.ItemByID(sw.NewItemID)
			if !ok {
				return summary, nil, fmt.Errorf("%w: %s on subscription %s", subscription.ErrItemNotFound, sw.NewItemID, created.ID)
			}
			to = *item
			summary.Activated = append(summary.Activated, created.ID)
		} else {
			added, ok := sub.ItemByID(sw.AddItemID)
			if !ok {
				return summary, nil, fmt.Errorf("%w: %s on subscription %s", subscription.ErrItemNotFound, sw.AddItemID, sub.ID)
			}
			added.Type = added.Type.Base()
			to = *added
		}
		old.Type = old.Type.Switched()
		old.SwitchedToItemID = to.ID

		summary.Switches = append(summary.Switches, SwitchedItem{From: old.Name, To: to.Name})
		notes = append(notes, switchNote{
			subscriptionID: sub.ID,
			message:        fmt.Sprintf("Customer switched from: %s to %s.", old.Name, to.Name),
		})
	}

	for _, ic := range []subscription.ItemChanges{ch.Coupons, ch.Fees, ch.Shipping} {
		applyItemChanges(sub, ic)
	}
	if ch.BillingSchedule != nil {
		sub.Period = ch.BillingSchedule.Period
		sub.Interval = ch.BillingSchedule.Interval
	}
	applyDates(sub, ch.Dates)
	if !order.BillingAddress.IsZero() {
		sub.BillingAddress = order.BillingAddress
	}
	if !order.ShippingAddress.IsZero() {
		sub.ShippingAddress = order.ShippingAddress
	}
	if len(sub.LiveProductItems()) == 0 {
		sub.Status = subscription.StatusCancelled
		sub.NextPayment = time.Time{}
		sub.End = now
	}
	sub.CalculateTotals()
	sub.UpdatedAt = now
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return summary, nil, err
	}

	summary.Status = sub.Status
	summary.NextPayment = sub.NextPayment
	summary.Total = sub.Total
	return summary, notes, nil
}

// applyItemChanges archives replaced adjustment lines and makes pending ones live.
// Lines that no longer exist are skipped.
func applyItemChanges(sub *subscription.Subscription, ic subscription.ItemChanges) {
	for _, id := range ic.Remove {
		if item, ok := sub.ItemByID(id); ok && item.Type.IsLive() {
			item.Type = item.Type.Switched()
		}
	}
	for _, id := range ic.Add {
		if item, ok := sub.ItemByID(id); ok && item.Type.IsPending() {
			item.Type = item.Type.Base()
		}
	}
}

func (s *Service) activateSubscription(ctx context.Context, tx subscription.Repository, id uuid.UUID,
	order *subscription.Order, now time.Time,
) (*subscription.Subscription, error) {
	sub, err := tx.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status == subscription.StatusPending {
		sub.Status = subscription.StatusActive
		if sub.PaymentMethod == "" {
			sub.PaymentMethod = order.PaymentMethod
		}
		sub.UpdatedAt = now
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func (s *Service) writeNotes(ctx context.Context, orderID uuid.UUID, notes []switchNote) {
	if s.notes == nil {
		return
	}
	var errs []error
	for _, n := range notes {
		errs = append(errs, s.notes.Log(ctx, NoteSubscriptionSwitched,
			audit.WithResource("subscription", n.subscriptionID.String()),
			audit.WithMessage(n.message),
			audit.WithMetadata("order_id", orderID.String())))
		errs = append(errs, s.notes.Log(ctx, NoteOrderSwitched,
			audit.WithResource("order", orderID.String()),
			audit.WithMessage(n.message),
			audit.WithMetadata("subscription_id", n.subscriptionID.String())))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.WarnContext(ctx, "failed to record switch notes", logger.Error(err))
	}
}

// DiscardSwitch removes the pending lines a switch order added and cancels the
// subscriptions it created but never activated. Completed orders are left alone.
func (s *Service) DiscardSwitch(ctx context.Context, orderID uuid.UUID) error {
	ctx = logger.WithOrderID(ctx, orderID)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Kind != subscription.OrderKindSwitch {
			return ErrNotSwitchOrder
		}
		if order.SwitchCompleted {
			return nil
		}
		return s.discardPlan(ctx, tx, order, s.now().UTC())
	})
}

func (s *Service) discardPlan(ctx context.Context, tx subscription.Repository, order *subscription.Order, now time.Time) error {
	for _, id := range order.SwitchPlan.SubscriptionIDs() {
		ch := order.SwitchPlan[id]
		sub, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		pending := append(append(append([]uuid.UUID{}, ch.Coupons.Add...), ch.Fees.Add...), ch.Shipping.Add...)
		for _, sw := range ch.Switches {
			if sw.AddItemID != uuid.Nil {
				pending = append(pending, sw.AddItemID)
			}
			if sw.NewSubscriptionID != uuid.Nil {
				if err := s.cancelCreated(ctx, tx, sw.NewSubscriptionID, now); err != nil {
					return err
				}
			}
		}
		changed := false
		for _, itemID := range pending {
			if item, ok := sub.ItemByID(itemID); ok && item.Type.IsPending() {
				changed = sub.RemoveItem(itemID) || changed
			}
		}
		if !changed {
			continue
		}
		sub.UpdatedAt = now
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "switch discarded", logger.OrderID(order.ID))
	return nil
}

func (s *Service) cancelCreated(ctx context.Context, tx subscription.Repository, id uuid.UUID, now time.Time) error {
	sub, err := tx.GetSubscription(ctx, id)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sub.Status != subscription.StatusPending {
		return nil
	}
	sub.Status = subscription.StatusCancelled
	sub.NextPayment = time.Time{}
	sub.End = now
	sub.UpdatedAt = now
	return tx.SaveSubscription(ctx, sub)
}

// cancelOtherSwitchOrders cancels the unpaid switch orders of a subscription,
// except keep, and discards their plans.
func (s *Service) cancelOtherSwitchOrders(ctx context.Context, tx subscription.Repository, subID, keep uuid.UUID, now time.Time) error {
	orders, err := tx.OrdersForSubscription(ctx, subID)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if o.ID == keep || o.Kind != subscription.OrderKindSwitch || o.SwitchCompleted {
			continue
		}
		if o.Status != subscription.OrderStatusPending && o.Status != subscription.OrderStatusFailed {
			continue
		}
		status, err := s.lifecycle.Fire(ctx, o.Status, EventCancel, o)
		if err != nil {
			return err
		}
		o.Status = status
		if err := s.discardPlan(ctx, tx, o, now); err != nil {
			return err
		}
		if err := tx.SaveOrder(ctx, o); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "superseded switch order cancelled",
			logger.OrderID(o.ID), logger.SubscriptionID(subID))
	}
	return nil
}
