package subscription

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a parent, renewal or switch order related to one or more subscriptions.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Kind            OrderKind       `json:"kind"`
	Status          OrderStatus     `json:"status"`
	Currency        string          `json:"currency"`
	SubscriptionIDs []uuid.UUID     `json:"subscription_ids"`
	Items           []LineItem      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	EarlyRenewal    bool            `json:"early_renewal,omitempty"`
	BillingAddress  Address         `json:"billing_address"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	PaidAt          time.Time       `json:"paid_at"`

	// SwitchPlan holds the subscription mutations applied once the order is paid.
	SwitchPlan SwitchPlan `json:"switch_plan,omitempty"`
	// SwitchCompleted is set when SwitchPlan has been applied.
	SwitchCompleted bool `json:"switch_completed,omitempty"`
}

// IsPaid reports whether the order status is one of the given paid statuses.
// PaidStatuses is used when none are given.
func (o *Order) IsPaid(statuses ...OrderStatus) bool {
	if len(statuses) == 0 {
		statuses = PaidStatuses
	}
	return slices.Contains(statuses, o.Status)
}

// IsRegular reports whether the order starts a billing cycle:
// a parent order or an on-schedule renewal.
func (o *Order) IsRegular() bool {
	return o.Kind == OrderKindParent || (o.Kind == OrderKindRenewal && !o.EarlyRenewal)
}

// PaidOrCreatedAt returns the paid date, falling back to the creation date.
func (o *Order) PaidOrCreatedAt() time.Time {
	if !o.PaidAt.IsZero() {
		return o.PaidAt
	}
	return o.CreatedAt
}

// RelatesTo reports whether the order is linked to the subscription.
func (o *Order) RelatesTo(subscriptionID uuid.UUID) bool {
	return slices.Contains(o.SubscriptionIDs, subscriptionID)
}

// CalculateTotal sums the order lines.
func (o *Order) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		switch item.Type.Base() {
		case ItemTypeCoupon:
			total = total.Sub(item.Total)
		default:
			total = total.Add(item.Total).Add(item.Tax)
		}
	}
	o.Total = total
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.SubscriptionIDs = slices.Clone(o.SubscriptionIDs)
	c.Items = slices.Clone(o.Items)
	c.SwitchPlan = o.SwitchPlan.Clone()
	return &c
}

// SortNewestFirst orders by creation date, newest first.
func SortNewestFirst(orders []*Order) {
	slices.SortStableFunc(orders, func(a, b *Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
}

// FilterOrders returns the orders of the given kinds, preserving order.
func FilterOrders(orders []*Order, kinds ...OrderKind) []*Order {
	var out []*Order
	for _, o := range orders {
		if slices.Contains(kinds, o.Kind) {
			out = append(out, o)
		}
	}
	return out
}

// SwitchPlan maps a subscription id to the changes recorded for it by a switch order.
type SwitchPlan map[uuid.UUID]*SubscriptionChanges

// SubscriptionIDs returns the plan's subscription ids in a stable order.
func (p SwitchPlan) SubscriptionIDs() []uuid.UUID {
	ids := slices.Collect(maps.Keys(p))
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return cmp.Compare(a.String(), b.String()) })
	return ids
}

// Clone returns a deep copy of the plan.
func (p SwitchPlan) Clone() SwitchPlan {
	if p == nil {
		return nil
	}
	c := make(SwitchPlan, len(p))
	for id, changes := range p {
		c[id] = changes.Clone()
	}
	return c
}

// SubscriptionChanges are the mutations one switch order applies to one subscription.
type SubscriptionChanges struct {
	Switches        []SwitchChange `json:"switches,omitempty"`
	Coupons         ItemChanges    `json:"coupons"`
	Fees            ItemChanges    `json:"fees"`
	Shipping        ItemChanges    `json:"shipping"`
	BillingSchedule *Schedule      `json:"billing_schedule,omitempty"`
	Dates           DateChanges    `json:"dates"`
}

// Clone returns a deep copy of the changes.
func (c *SubscriptionChanges) Clone() *SubscriptionChanges {
	if c == nil {
		return nil
	}
	out := *c
	out.Switches = slices.Clone(c.Switches)
	out.Coupons = c.Coupons.clone()
	out.Fees = c.Fees.clone()
	out.Shipping = c.Shipping.clone()
	if c.BillingSchedule != nil {
		sch := *c.BillingSchedule
		out.BillingSchedule = &sch
	}
	out.Dates = DateChanges{
		Update: maps.Clone(c.Dates.Update),
		Delete: slices.Clone(c.Dates.Delete),
	}
	return &out
}

// IsEmpty reports whether the changes do nothing.
func (c *SubscriptionChanges) IsEmpty() bool {
	return len(c.Switches) == 0 &&
		c.Coupons.isEmpty() && c.Fees.isEmpty() && c.Shipping.isEmpty() &&
		c.BillingSchedule == nil && len(c.Dates.Update) == 0 && len(c.Dates.Delete) == 0
}

// SwitchChange replaces one product line.
// AddItemID is a pending line on the same subscription when updated in place.
// NewSubscriptionID is set when the new product lives on a subscription created by the switch order.
type SwitchChange struct {
	AddItemID         uuid.UUID `json:"add_item_id,omitempty"`
	RemoveItemID      uuid.UUID `json:"remove_item_id,omitempty"`
	NewSubscriptionID uuid.UUID `json:"new_subscription_id,omitempty"`
	NewItemID         uuid.UUID `json:"new_item_id,omitempty"`
}

// ItemChanges lists pending lines to make live and live lines to archive.
type ItemChanges struct {
	Add    []uuid.UUID `json:"add,omitempty"`
	Remove []uuid.UUID `json:"remove,omitempty"`
}

func (c ItemChanges) clone() ItemChanges {
	return ItemChanges{Add: slices.Clone(c.Add), Remove: slices.Clone(c.Remove)}
}

func (c ItemChanges) isEmpty() bool { return len(c.Add) == 0 && len(c.Remove) == 0 }

// DateChanges are the subscription dates to set or delete.
type DateChanges struct {
	Update map[DateType]time.Time `json:"update,omitempty"`
	Delete []DateType             `json:"delete,omitempty"`
}
