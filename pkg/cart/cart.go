package cart

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// Cart is one shopping session. It only lives until checkout creates an order.
type Cart struct {
	ID              uuid.UUID            `json:"id"`
	CustomerID      uuid.UUID            `json:"customer_id"`
	Currency        string               `json:"currency"`
	Items           []Item               `json:"items"`
	Adjustments     []Adjustment         `json:"adjustments,omitempty"`
	BillingAddress  subscription.Address `json:"billing_address"`
	ShippingAddress subscription.Address `json:"shipping_address"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	Notices         []Notice             `json:"notices,omitempty"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Item is a product in the cart. Price, SignUpFee, Length and the schedule are
// staged values: they start as the catalog values and are rewritten by the
// totals calculator on every pass.
type Item struct {
	Key         string                     `json:"key" validate:"required"`
	ProductID   uuid.UUID                  `json:"product_id" validate:"required"`
	Quantity    int                        `json:"quantity" validate:"min=1"`
	Price       decimal.Decimal            `json:"price"`
	SignUpFee   decimal.Decimal            `json:"sign_up_fee"`
	Period      subscription.BillingPeriod `json:"period"`
	Interval    int                        `json:"interval"`
	Length      int                        `json:"length"`
	TrialLength int                        `json:"trial_length"`
	TrialPeriod subscription.BillingPeriod `json:"trial_period,omitempty"`
	Switch      *SwitchDetails             `json:"switch,omitempty"`
}

// IsSwitch reports whether the item replaces an existing subscription line.
func (i *Item) IsSwitch() bool { return i.Switch != nil }

// Schedule returns the staged billing schedule.
func (i *Item) Schedule() subscription.Schedule {
	return subscription.Schedule{Period: i.Period, Interval: i.Interval}
}

// RecurringTotal is the staged recurring price for the whole quantity.
func (i *Item) RecurringTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SignUpFeeTotal is the staged sign-up fee for the whole quantity.
func (i *Item) SignUpFeeTotal() decimal.Decimal {
	return i.SignUpFee.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SwitchDetails pairs the item with the subscription line it replaces and
// carries the computed proration outputs.
type SwitchDetails struct {
	SubscriptionID uuid.UUID `json:"subscription_id" validate:"required"`
	ItemID         uuid.UUID `json:"item_id" validate:"required"`

	// NextPayment is the subscription's next payment, or its end date when no
	// more payments are due.
	NextPayment time.Time `json:"next_payment"`
	// FirstPayment is the first recurring payment of the new item.
	// Zero means the recurring price is charged now.
	FirstPayment time.Time `json:"first_payment"`
	End          time.Time `json:"end"`
	// NoNextPayment is set when the switch order pays the new plan up to its
	// end date and the subscription has no further renewals.
	NoNextPayment bool `json:"no_next_payment,omitempty"`

	SwitchType  string          `json:"switch_type,omitempty"`
	UpgradeCost decimal.Decimal `json:"upgrade_cost"`
	DaysAdded   int             `json:"days_added,omitempty"`

	RecurringProrated bool `json:"recurring_prorated,omitempty"`
	SignUpFeeProrated bool `json:"sign_up_fee_prorated,omitempty"`
	LengthProrated    bool `json:"length_prorated,omitempty"`
}

// ChargesNow reports whether the recurring price is due in the switch order.
func (d *SwitchDetails) ChargesNow() bool { return d.FirstPayment.IsZero() && !d.NoNextPayment }

// Adjustment is a coupon, fee or shipping line.
// Recurring adjustments are also applied to subscriptions updated by a switch.
type Adjustment struct {
	Type      subscription.ItemType `json:"type" validate:"oneof=coupon fee shipping"`
	Code      string                `json:"code,omitempty"`
	Name      string                `json:"name"`
	Total     decimal.Decimal       `json:"total"`
	Tax       decimal.Decimal       `json:"tax"`
	Recurring bool                  `json:"recurring,omitempty"`
}

// Notice is a message shown to the customer, e.g. why an item was removed.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

const (
	NoticeError = "error"
	NoticeInfo  = "info"
)

// SwitchItems returns pointers to the items that replace subscription lines.
func (c *Cart) SwitchItems() []*Item {
	var items []*Item
	for i := range c.Items {
		if c.Items[i].IsSwitch() {
			items = append(items, &c.Items[i])
		}
	}
	return items
}

// Item returns a pointer to the item with the given key.
func (c *Cart) Item(key string) (*Item, bool) {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return &c.Items[i], true
		}
	}
	return nil, false
}

// Remove deletes the item with the given key.
func (c *Cart) Remove(key string) error {
	n := len(c.Items)
	c.Items = slices.DeleteFunc(c.Items, func(i Item) bool { return i.Key == key })
	if len(c.Items) == n {
		return ErrItemNotFound
	}
	return nil
}

// AddNotice records a customer notice.
func (c *Cart) AddNotice(level, msg string) {
	c.Notices = append(c.Notices, Notice{Level: level, Message: msg})
}

// RecurringAdjustments returns the recurring adjustments of type t.
func (c *Cart) RecurringAdjustments(t subscription.ItemType) []Adjustment {
	var out []Adjustment
	for _, a := range c.Adjustments {
		if a.Recurring && a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]Item, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item
		if item.Switch != nil {
			sw := *item.Switch
			out.Items[i].Switch = &sw
		}
	}
	out.Adjustments = slices.Clone(c.Adjustments)
	out.Notices = slices.Clone(c.Notices)
	return &out
}
