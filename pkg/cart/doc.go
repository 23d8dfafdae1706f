// Package cart models a shopping session that may contain switch candidates:
// new product selections paired with the subscription line they replace.
//
// # Items
//
// Cart items carry staged pricing (Price, SignUpFee, Length and schedule) and,
// for switches, the proration outputs in SwitchDetails. Both are rewritten by
// the switcher's totals calculator and never touch a subscription until checkout.
//
//	for _, item := range c.SwitchItems() {
//		if item.Switch.ChargesNow() {
//			// the recurring price is part of the switch order
//		}
//	}
//
// SwitchDetails.FirstPayment is the first renewal of the new plan; zero means
// the recurring price is charged with the switch order. NoNextPayment marks a
// switch that prepays a one-payment plan to its end date, so nothing is charged
// on renewal and no renewal is scheduled.
//
// # Adjustments
//
// Coupons, fees and shipping are Adjustments. Recurring adjustments are also
// copied to the subscriptions updated by a switch and replace the ones they
// had; one-off adjustments stay on the switch order.
//
// # Notices
//
// Items removed during validation leave a Notice on the cart so the reason can
// be shown to the customer on the next page render.
//
// # Storage
//
// Carts are stored per session in a Store:
//
//   - MemoryStore for tests and single process use
//   - RedisStore for shared sessions with expiry
//
// Get returns ErrCartNotFound for unknown or expired carts. Stores keep their
// own copies, so a cart changed after Save is not visible to other sessions
// until it is saved again.
//
//	store := cart.NewRedisStore(storage, 24*time.Hour)
//	if err := store.Save(ctx, c); err != nil {
//		return err
//	}
package cart
