package switcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/queue"
	"github.com/dmitrymomot/switchkit/pkg/webhook"
)

// EventTypeSwitchCompleted is the webhook event type of SwitchCompletedEvent.
const EventTypeSwitchCompleted = "switch.completed"

// SwitchWebhook is a queued delivery of a completed switch to an endpoint.
type SwitchWebhook struct {
	URL   string               `json:"url"`
	Event SwitchCompletedEvent `json:"event"`
}

// WebhookSender posts events to an endpoint. *webhook.Sender implements it.
type WebhookSender interface {
	Send(ctx context.Context, endpoint string, ev webhook.Event) error
}

// WebhookListener queues a SwitchWebhook to url for every completed switch.
// Deliveries are retried by the queue.
func WebhookListener(enq *queue.Enqueuer, url string) Listener {
	return func(ctx context.Context, ev SwitchCompletedEvent) error {
		return enq.Enqueue(ctx, SwitchWebhook{URL: url, Event: ev})
	}
}

// WebhookHandler delivers queued SwitchWebhook tasks. Deliveries the endpoint
// rejected for good are logged and dropped, other failures are retried.
func WebhookHandler(sender WebhookSender, log *slog.Logger) queue.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return queue.NewTaskHandler(func(ctx context.Context, task SwitchWebhook) error {
		err := sender.Send(ctx, task.URL, webhook.Event{
			ID:        task.Event.OrderID.String(),
			Type:      EventTypeSwitchCompleted,
			CreatedAt: task.Event.CompletedAt,
			Data:      task.Event,
		})
		if errors.Is(err, webhook.ErrPermanentFailure) || errors.Is(err, webhook.ErrInvalidURL) {
			log.WarnContext(ctx, "switch webhook rejected",
				logger.Component("switcher"),
				logger.OrderID(task.Event.OrderID),
				logger.Error(err),
			)
			return nil
		}
		return err
	})
}
