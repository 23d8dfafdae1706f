package switcher

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/queue"
	"github.com/dmitrymomot/switchkit/pkg/statemachine"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// OrderEvent moves an order between statuses.
type OrderEvent string

const (
	EventPay      OrderEvent = "pay"
	EventComplete OrderEvent = "complete"
	EventHold     OrderEvent = "hold"
	EventCancel   OrderEvent = "cancel"
	EventFail     OrderEvent = "fail"
	EventRefund   OrderEvent = "refund"
)

// OrderLifecycle is the state machine of order statuses.
type OrderLifecycle = statemachine.Definition[subscription.OrderStatus, OrderEvent, *subscription.Order]

type orderTransition = statemachine.Transition[subscription.OrderStatus, OrderEvent, *subscription.Order]

// NewOrderLifecycle builds the order state machine. Orders entering one of the
// paid statuses get PaidAt stamped with now.
func NewOrderLifecycle(paid []subscription.OrderStatus, now func() time.Time) *OrderLifecycle {
	stampPaid := func(_ context.Context, _, to subscription.OrderStatus, _ OrderEvent, o *subscription.Order) error {
		if o.PaidAt.IsZero() && slices.Contains(paid, to) {
			o.PaidAt = now().UTC()
		}
		return nil
	}
	actions := []statemachine.Action[subscription.OrderStatus, OrderEvent, *subscription.Order]{stampPaid}

	var transitions []orderTransition
	add := func(event OrderEvent, to subscription.OrderStatus, from ...subscription.OrderStatus) {
		for _, f := range from {
			transitions = append(transitions, orderTransition{From: f, To: to, Event: event, Actions: actions})
		}
	}
	add(EventPay, subscription.OrderStatusProcessing,
		subscription.OrderStatusPending, subscription.OrderStatusOnHold, subscription.OrderStatusFailed)
	add(EventComplete, subscription.OrderStatusCompleted,
		subscription.OrderStatusPending, subscription.OrderStatusProcessing, subscription.OrderStatusOnHold)
	add(EventHold, subscription.OrderStatusOnHold,
		subscription.OrderStatusPending, subscription.OrderStatusProcessing)
	add(EventCancel, subscription.OrderStatusCancelled,
		subscription.OrderStatusPending, subscription.OrderStatusOnHold, subscription.OrderStatusFailed)
	add(EventFail, subscription.OrderStatusFailed,
		subscription.OrderStatusPending)
	add(EventRefund, subscription.OrderStatusRefunded,
		subscription.OrderStatusProcessing, subscription.OrderStatusCompleted)

	return statemachine.New(transitions...)
}

// OrderStatusChanged is the task enqueued after a switch order changes status.
type OrderStatusChanged struct {
	OrderID uuid.UUID                `json:"order_id"`
	Status  subscription.OrderStatus `json:"status"`
}

// TransitionOrder fires event on the order and saves the new status.
// For switch orders the side effects run after the commit: through the task
// queue when an enqueuer is configured, inline otherwise.
func (s *Service) TransitionOrder(ctx context.Context, orderID uuid.UUID, event OrderEvent) (*subscription.Order, error) {
	ctx = logger.WithOrderID(ctx, orderID)

	var updated *subscription.Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		status, err := s.lifecycle.Fire(ctx, order.Status, event, order)
		if err != nil {
			return err
		}
		order.Status = status
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "order status changed",
		logger.Event(string(event)), logger.OrderStatus(string(updated.Status)))

	if updated.Kind != subscription.OrderKindSwitch {
		return updated, nil
	}
	change := OrderStatusChanged{OrderID: updated.ID, Status: updated.Status}
	if s.enqueuer == nil {
		return updated, s.HandleOrderStatusChanged(ctx, change)
	}
	if err := s.enqueuer.Enqueue(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue order status change, handling inline", logger.Error(err))
		return updated, s.HandleOrderStatusChanged(ctx, change)
	}
	return updated, nil
}

// HandleOrderStatusChanged completes the switch once the order is paid and
// discards it once the order is cancelled.
func (s *Service) HandleOrderStatusChanged(ctx context.Context, ev OrderStatusChanged) error {
	switch {
	case slices.Contains(s.settings.PaymentCompleteStatuses, ev.Status):
		err := s.CompleteSwitches(ctx, ev.OrderID)
		if errors.Is(err, ErrOrderNotPaid) {
			s.logger.InfoContext(ctx, "order is no longer paid, switch left pending", logger.OrderID(ev.OrderID))
			return nil
		}
		return err
	case ev.Status == subscription.OrderStatusCancelled:
		return s.DiscardSwitch(ctx, ev.OrderID)
	}
	return nil
}

// TaskHandlers returns the queue handlers of the service.
func (s *Service) TaskHandlers() []queue.Handler {
	return []queue.Handler{
		queue.NewTaskHandler(s.HandleOrderStatusChanged),
	}
}
