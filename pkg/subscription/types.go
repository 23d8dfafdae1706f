package subscription

import "strings"

// BillingPeriod is the unit of a billing schedule.
type BillingPeriod string

const (
	PeriodDay   BillingPeriod = "day"
	PeriodWeek  BillingPeriod = "week"
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

// Valid reports whether p is one of the supported periods.
func (p BillingPeriod) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// Schedule is a billing period and interval pair, e.g. every 2 weeks.
type Schedule struct {
	Period   BillingPeriod `json:"period" yaml:"period"`
	Interval int           `json:"interval" yaml:"interval"`
}

// Status represents the current state of a subscription.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusOnHold        Status = "on-hold"
	StatusPendingCancel Status = "pending-cancel"
	StatusCancelled     Status = "cancelled"
	StatusExpired       Status = "expired"
)

// ItemType classifies a line on a subscription or an order.
// Lines added by an unpaid switch carry the "_pending_switch" suffix,
// lines replaced by a completed switch carry the "_switched" suffix.
type ItemType string

const (
	ItemTypeLineItem              ItemType = "line_item"
	ItemTypeLineItemPendingSwitch ItemType = "line_item_pending_switch"
	ItemTypeLineItemSwitched      ItemType = "line_item_switched"

	ItemTypeCoupon              ItemType = "coupon"
	ItemTypeCouponPendingSwitch ItemType = "coupon_pending_switch"
	ItemTypeCouponSwitched      ItemType = "coupon_switched"

	ItemTypeFee              ItemType = "fee"
	ItemTypeFeePendingSwitch ItemType = "fee_pending_switch"
	ItemTypeFeeSwitched      ItemType = "fee_switched"

	ItemTypeShipping              ItemType = "shipping"
	ItemTypeShippingPendingSwitch ItemType = "shipping_pending_switch"
	ItemTypeShippingSwitched      ItemType = "shipping_switched"
)

const (
	pendingSuffix  = "_pending_switch"
	switchedSuffix = "_switched"
)

// Base strips the switch state suffix: "coupon_pending_switch" becomes "coupon".
func (t ItemType) Base() ItemType {
	s := string(t)
	s = strings.TrimSuffix(s, pendingSuffix)
	s = strings.TrimSuffix(s, switchedSuffix)
	return ItemType(s)
}

// Pending returns the pending-switch variant of the base type.
func (t ItemType) Pending() ItemType { return t.Base() + pendingSuffix }

// Switched returns the archived variant of the base type.
func (t ItemType) Switched() ItemType { return t.Base() + switchedSuffix }

// IsPending reports whether the line is waiting for a switch order to be paid.
func (t ItemType) IsPending() bool { return strings.HasSuffix(string(t), pendingSuffix) }

// IsSwitched reports whether the line was replaced by a switch.
func (t ItemType) IsSwitched() bool {
	return !t.IsPending() && strings.HasSuffix(string(t), switchedSuffix)
}

// IsLive reports whether the line is part of the current recurring total.
func (t ItemType) IsLive() bool { return t != "" && t == t.Base() }

// OrderKind is the relationship between an order and a subscription.
type OrderKind string

const (
	OrderKindParent      OrderKind = "parent"
	OrderKindRenewal     OrderKind = "renewal"
	OrderKindSwitch      OrderKind = "switch"
	OrderKindResubscribe OrderKind = "resubscribe"
)

// OrderStatus mirrors the e-commerce order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaidStatuses are the order statuses that count as paid.
var PaidStatuses = []OrderStatus{OrderStatusProcessing, OrderStatusCompleted}

// DateType names a subscription date that a switch can change.
type DateType string

const (
	DateTrialEnd    DateType = "trial_end"
	DateNextPayment DateType = "next_payment"
	DateEnd         DateType = "end"
)

// Address is a billing or shipping address.
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1,omitempty"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postcode  string `json:"postcode,omitempty"`
	Country   string `json:"country,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool { return a == Address{} }
