// Package subscription holds the recurring-billing domain model used by the
// switching engine: products, subscriptions, their line items and the orders
// related to them.
//
// # Model
//
//   - Product: price, sign-up fee, billing schedule, length and trial of a plan.
//   - Subscription: a billing agreement with one current Schedule and a list of
//     line items. Items replaced by a switch stay on the subscription with a
//     "_switched" type so the history of "this item replaced that item" is kept.
//   - Order: parent, renewal or switch order. A switch order carries a SwitchPlan,
//     the set of mutations to apply to each subscription once the order is paid.
//
// A product whose Length equals its Interval is a one-payment plan: it is paid
// once and runs until its end date without renewals (Product.IsOnePayment).
// Variations point to their parent through ParentID; products that may be
// switched between share a GroupID.
//
// # Line Items
//
// Line item types come in three states. A live type ("line_item", "coupon", "fee",
// "shipping") is billed. A pending type ("line_item_pending_switch") was added by an
// unpaid switch order and is ignored by totals. An archived type ("line_item_switched")
// was replaced by a completed switch.
//
//	item.Type.Base()      // line_item for every state
//	item.Type.Pending()   // the pending form of a live type
//	item.Type.Switched()  // the archived form of a live type
//
// Subscription.CalculateTotals sums the live lines only. SwitchedFromItemID and
// SwitchedToItemID link the lines of a switch in both directions.
//
// # Orders
//
// Orders relate to one or more subscriptions through SubscriptionIDs. IsPaid
// checks the status against PaidStatuses or a custom list, IsRegular tells
// orders that start a billing cycle (parent and on-schedule renewals) apart from
// early renewals and switches. SortNewestFirst and FilterOrders are used to find
// the last regular and last switch order of a subscription.
//
// # Dates
//
// AddTime adds billing periods with calendar-aware month arithmetic:
//
//	subscription.AddTime(1, subscription.PeriodMonth, jan31) // Feb 29 2024
//
// DaysInCycle returns the average day count of a schedule and is used when the
// actual payment dates can not be used. DaysBetween returns fractional days;
// SameDate compares calendar dates in UTC and treats two zero times as equal.
//
// # Storage
//
// Repository combines SubscriptionStore and OrderStore with WithTx. Calling
// WithTx on the tx handle joins the running transaction. LockOrder holds a row
// lock on the order until the transaction ends; it is what makes a switch commit
// run once under concurrent payment notifications.
//
//	err := repo.WithTx(ctx, func(ctx context.Context, tx subscription.Repository) error {
//		order, err := tx.LockOrder(ctx, orderID)
//		if err != nil {
//			return err
//		}
//		...
//		return tx.SaveOrder(ctx, order)
//	})
//
// MemoryStore is a snapshot-based implementation for tests and single-process
// use: a transaction works on a copy that replaces the live data on commit. The
// pgstore package provides PostgreSQL.
//
// # Catalog
//
// Products are resolved through a Catalog. MemoryCatalog holds products in
// memory; LoadCatalog fills one from any ProductsSource and validates every
// product. Wrap slow catalogs with NewCachedCatalog and load fixtures with
// NewYAMLCatalogSource:
//
//	src := subscription.NewYAMLCatalogSource(f)
//	catalog, err := subscription.LoadCatalog(ctx, src)
//	if err != nil {
//		return err
//	}
//	cached := subscription.NewCachedCatalog(catalog, 1024, 5*time.Minute)
//
// # Error Handling
//
// Lookups return ErrSubscriptionNotFound, ErrOrderNotFound, ErrProductNotFound
// or ErrItemNotFound. Product validation joins every failure with errors.Join
// so all problems of a catalog are reported at once.
package subscription
