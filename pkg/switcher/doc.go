// Package switcher prices and commits subscription switches: replacing the
// product on a line of an existing subscription with another product.
//
// The package is organised around four components:
//
//   - Item: read-only view of one switch with the proration inputs
//   - Service: validation, pricing, checkout and commit of switches
//   - OrderLifecycle: state machine of order statuses driving the commit
//   - Listener: side effects run after a switch has been applied
//
// # Validation
//
// AddSwitch validates a SwitchRequest and adds it to a cart. A line may be
// switched only when the subscription is active or pending cancellation, belongs to the cart's
// customer, is not already being switched and the new product is allowed by
// Settings.AllowSwitching (variations of the same parent, members of the same
// group, or both). ValidateCart re-checks every switch item before checkout and
// removes the ones that are no longer valid, leaving a cart.Notice for each.
// Validation failures are returned as *NoticeError wrapping a sentinel error.
//
// # Pricing
//
// Calculate stages the switch on a cart item. For every item it compares the
// price per day paid for the current period with the price per day of the new
// plan and classifies the switch as an upgrade, downgrade or crossgrade.
// Depending on Settings and Hooks it then
//
//   - charges the sign-up fee difference,
//   - reduces the prepaid term when the new cycle is shorter,
//   - charges an upgrade cost for the days left in the period,
//   - extends the prepaid term on downgrades,
//   - keeps the remaining length of the old plan.
//
// Switching to a one-payment plan charges the new price up to the plan's end
// date and schedules no further renewal (cart.SwitchDetails.NoNextPayment).
//
// The results live on cart.SwitchDetails and the staged cart item values.
// Calculate is repeatable: staged values are reset from the catalog first.
// PrepareCart runs ValidateCart and Calculate in that order.
//
// # Committing
//
// A switch is committed in two phases. Checkout records a pending switch order
// and a SwitchPlan: subscriptions get pending lines, or a new pending
// subscription when the schedule can not be merged. CompleteSwitches applies
// the plan once the order is paid. It locks the order and marks it completed in
// the same transaction, so the plan is applied exactly once. A failed commit is
// rolled back completely and may be retried.
//
// Cancelling an unpaid switch order runs DiscardSwitch, which removes
// the pending lines and cancels subscriptions created for the order. A newer
// checkout for the same subscription cancels older unpaid switch orders.
//
// # Usage
//
//	svc := switcher.MustNew(repo, catalog,
//		switcher.WithSettings(settings),
//		switcher.WithCartStore(carts),
//		switcher.WithListeners(switcher.PaymentMethodListener(repo)),
//	)
//
//	item, err := svc.AddSwitch(ctx, c, switcher.SwitchRequest{
//		SubscriptionID: subID,
//		ItemID:         lineID,
//		ProductID:      premiumID,
//		Quantity:       1,
//	})
//	if err != nil {
//		return err
//	}
//	order, err := svc.Checkout(ctx, c)
//	if err != nil {
//		return err
//	}
//
//	// after the payment gateway confirms the payment
//	_, err = svc.TransitionOrder(ctx, order.ID, switcher.EventPay)
//
// TransitionOrder drives the order status through OrderLifecycle and runs
// CompleteSwitches or DiscardSwitch for the new status. With WithEnqueuer the
// status change is handed to the task queue instead; register TaskHandlers with
// the queue worker to process it.
//
// # Configuration
//
// Settings are loaded from the environment with LoadSettings:
//
//	SWITCH_APPORTION_RECURRING_PRICE  no | virtual-upgrade | yes-upgrade | virtual | yes
//	SWITCH_APPORTION_SIGN_UP_FEE      no | full | yes
//	SWITCH_APPORTION_LENGTH           no | virtual | yes
//	SWITCH_ALLOW                      no | variable | grouped | variable_grouped
//	SWITCH_PAYMENT_COMPLETE_STATUS    order statuses that trigger the commit
//	SWITCH_PRICE_DECIMALS             rounding precision of charged amounts
//
// Hooks override individual decisions of the calculation. Every hook receives
// the computed default; nil hooks keep it.
//
// # Side Effects
//
// After a commit the Service records notes through the audit logger, runs the
// registered Listeners and publishes a SwitchCompletedEvent on the broadcaster.
// Listener errors are logged and never roll a switch back. Ready-made listeners:
//
//   - PaymentMethodListener copies the order's payment method to the subscriptions
//   - NotifyListener emails the customer a SwitchSummaryEmail
//   - WebhookListener enqueues a signed webhook, delivered by WebhookHandler
//
// # Observability
//
// NewMetrics registers Prometheus collectors under the switchkit namespace:
// calculated and rejected switch items, checkout and commit results, and commit
// duration. Log records carry order, subscription and customer ids through the
// logger package attributes.
//
// # Error Handling
//
// Sentinel errors (ErrSwitchNotAllowed, ErrOrderNotPaid, ErrInvalidDates, ...)
// can be checked with errors.Is. Checkout and CompleteSwitches wrap failures in
// ErrFailedToCheckout and ErrFailedToComplete. A hook returning an unknown
// switch type fails with *InvalidSwitchTypeError, see IsInvalidSwitchType.
package switcher
