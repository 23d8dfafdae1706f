package switcher

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/switchkit/pkg/broadcast"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// SwitchCompletedEvent is emitted once a switch order's plan has been applied.
type SwitchCompletedEvent struct {
	OrderID       uuid.UUID              `json:"order_id"`
	CustomerID    uuid.UUID              `json:"customer_id"`
	Email         string                 `json:"email,omitempty"`
	Currency      string                 `json:"currency"`
	OrderTotal    decimal.Decimal        `json:"order_total"`
	PaymentMethod string                 `json:"payment_method,omitempty"`
	Subscriptions []SwitchedSubscription `json:"subscriptions"`
	CompletedAt   time.Time              `json:"completed_at"`
}

// SwitchedSubscription summarizes the changes applied to one subscription.
type SwitchedSubscription struct {
	ID          uuid.UUID           `json:"id"`
	Switches    []SwitchedItem      `json:"switches,omitempty"`
	Status      subscription.Status `json:"status"`
	NextPayment time.Time           `json:"next_payment"`
	Total       decimal.Decimal     `json:"total"`
	// Activated lists subscriptions created by the switch order and activated by it.
	Activated []uuid.UUID `json:"activated,omitempty"`
}

// SwitchedItem names the line replaced and its replacement.
type SwitchedItem struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Listener reacts to a completed switch. Listeners run after the commit, so
// their errors are logged but never roll the switch back.
type Listener func(ctx context.Context, ev SwitchCompletedEvent) error

func (s *Service) emit(ctx context.Context, ev SwitchCompletedEvent) {
	for _, l := range s.listeners {
		if err := l(ctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "switch listener failed", logger.Event("switch.completed"), logger.Error(err))
		}
	}
	if s.events != nil {
		if err := s.events.Broadcast(ctx, broadcast.Message[SwitchCompletedEvent]{Data: ev}); err != nil {
			s.logger.WarnContext(ctx, "failed to publish switch event", logger.Error(err))
		}
	}
}

// PaymentMethodListener carries the switch order's payment method over to every
// subscription it changed or created.
func PaymentMethodListener(repo subscription.Repository) Listener {
	return func(ctx context.Context, ev SwitchCompletedEvent) error {
		if ev.PaymentMethod == "" {
			return nil
		}
		var errs []error
		for _, ss := range ev.Subscriptions {
			for _, id := range append([]uuid.UUID{ss.ID}, ss.Activated...) {
				if err := setPaymentMethod(ctx, repo, id, ev.PaymentMethod); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return errors.Join(errs...)
	}
}

func setPaymentMethod(ctx context.Context, repo subscription.Repository, id uuid.UUID, method string) error {
	return repo.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
		sub, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		if sub.PaymentMethod == method {
			return nil
		}
		sub.PaymentMethod = method
		return tx.SaveSubscription(ctx, sub)
	})
}
