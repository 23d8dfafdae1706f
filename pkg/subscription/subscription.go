package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one line on a subscription or an order.
// For product lines Total is the recurring amount after discounts, SignUpFee is per unit.
// Coupon, fee and shipping lines use Code/Name and Total only.
type LineItem struct {
	ID                 uuid.UUID       `json:"id"`
	Type               ItemType        `json:"type"`
	ProductID          uuid.UUID       `json:"product_id,omitempty"`
	VariationID        uuid.UUID       `json:"variation_id,omitempty"`
	Name               string          `json:"name"`
	Code               string          `json:"code,omitempty"`
	Quantity           int             `json:"quantity"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Total              decimal.Decimal `json:"total"`
	Tax                decimal.Decimal `json:"tax"`
	SignUpFee          decimal.Decimal `json:"sign_up_fee"`
	SwitchedFromItemID uuid.UUID       `json:"switched_from_item_id,omitempty"`
	SwitchedToItemID   uuid.UUID       `json:"switched_to_item_id,omitempty"`
}

// CanonicalProductID returns the variation id when set, the product id otherwise.
func (i LineItem) CanonicalProductID() uuid.UUID {
	if i.VariationID != uuid.Nil {
		return i.VariationID
	}
	return i.ProductID
}

// Subscription is a recurring billing agreement.
// Zero dates mean the date is not set.
type Subscription struct {
	ID              uuid.UUID       `json:"id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	Status          Status          `json:"status"`
	Currency        string          `json:"currency"`
	Period          BillingPeriod   `json:"period"`
	Interval        int             `json:"interval"`
	Start           time.Time       `json:"start"`
	TrialEnd        time.Time       `json:"trial_end"`
	NextPayment     time.Time       `json:"next_payment"`
	End             time.Time       `json:"end"`
	ParentOrderID   uuid.UUID       `json:"parent_order_id,omitempty"`
	Items           []LineItem      `json:"items"`
	BillingAddress  Address         `json:"billing_address"`
	ShippingAddress Address         `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	TotalTax        decimal.Decimal `json:"total_tax"`
	Total           decimal.Decimal `json:"total"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Schedule returns the subscription's current billing schedule.
func (s *Subscription) Schedule() Schedule {
	return Schedule{Period: s.Period, Interval: s.Interval}
}

// HasSchedule reports whether the subscription bills on the given schedule.
func (s *Subscription) HasSchedule(sch Schedule) bool {
	return s.Period == sch.Period && s.Interval == sch.Interval
}

// IsActive reports whether the subscription can still be switched.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive || s.Status == StatusPendingCancel
}

// IsInTrial reports whether now is before the trial end date.
func (s *Subscription) IsInTrial(now time.Time) bool {
	return !s.TrialEnd.IsZero() && s.TrialEnd.After(now)
}

// Date returns one of the switchable dates.
func (s *Subscription) Date(t DateType) time.Time {
	switch t {
	case DateTrialEnd:
		return s.TrialEnd
	case DateNextPayment:
		return s.NextPayment
	case DateEnd:
		return s.End
	}
	return time.Time{}
}

// SetDate updates one of the switchable dates. A zero value deletes it.
func (s *Subscription) SetDate(t DateType, v time.Time) {
	switch t {
	case DateTrialEnd:
		s.TrialEnd = v
	case DateNextPayment:
		s.NextPayment = v
	case DateEnd:
		s.End = v
	}
}

// ItemByID returns a pointer to the item with the given id.
func (s *Subscription) ItemByID(id uuid.UUID) (*LineItem, bool) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// ItemsOfType returns copies of all items with the given type.
func (s *Subscription) ItemsOfType(t ItemType) []LineItem {
	var items []LineItem
	for _, item := range s.Items {
		if item.Type == t {
			items = append(items, item)
		}
	}
	return items
}

// LiveProductItems returns the product lines currently billed.
func (s *Subscription) LiveProductItems() []LineItem {
	return s.ItemsOfType(ItemTypeLineItem)
}

// RemoveItem deletes the item with the given id.
func (s *Subscription) RemoveItem(id uuid.UUID) bool {
	n := len(s.Items)
	s.Items = slices.DeleteFunc(s.Items, func(item LineItem) bool { return item.ID == id })
	return len(s.Items) != n
}

// CalculateTotals recomputes the recurring totals from live lines.
func (s *Subscription) CalculateTotals() {
	subtotal, discount, tax, total := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, item := range s.Items {
		if !item.Type.IsLive() {
			continue
		}
		switch item.Type {
		case ItemTypeLineItem:
			subtotal = subtotal.Add(item.Subtotal)
			total = total.Add(item.Total)
		case ItemTypeCoupon:
			discount = discount.Add(item.Total)
			continue
		default:
			total = total.Add(item.Total)
		}
		tax = tax.Add(item.Tax)
	}
	s.Subtotal = subtotal
	s.DiscountTotal = discount
	s.TotalTax = tax
	s.Total = total.Add(tax)
}

// Clone returns a deep copy of the subscription.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = slices.Clone(s.Items)
	return &c
}
