package switcher

import (
	"errors"
	"fmt"
)

var (
	ErrSwitchNotAllowed     = errors.New("switch is not allowed")
	ErrSubscriptionInactive = errors.New("subscription cannot be switched in its current status")
	ErrNotOwner             = errors.New("subscription belongs to another customer")
	ErrSameProduct          = errors.New("item is already on this plan")
	ErrDuplicateSwitch      = errors.New("line item is already being switched")
	ErrNoSwitchItems        = errors.New("cart has no switch items")
	ErrNotSwitchOrder       = errors.New("order is not a switch order")
	ErrOrderNotPaid         = errors.New("switch order is not paid")
	ErrInvalidDates         = errors.New("invalid subscription dates")
	ErrInvalidSettings      = errors.New("invalid switch settings")
	ErrFailedToCheckout     = errors.New("failed to record switch")
	ErrFailedToComplete     = errors.New("failed to complete switch")
)

// InvalidSwitchTypeError is returned when a switch type hook returns a value
// other than upgrade, downgrade or crossgrade.
type InvalidSwitchTypeError struct {
	Value string
}

func (e *InvalidSwitchTypeError) Error() string {
	return fmt.Sprintf("invalid switch type %q: must be one of upgrade, downgrade or crossgrade", e.Value)
}

// NoticeError is a validation failure shown to the customer.
// The offending cart item is removed.
type NoticeError struct {
	Key string
	Err error
	Msg string
}

func (e *NoticeError) Error() string { return e.Msg }

func (e *NoticeError) Unwrap() error { return e.Err }

func notice(key string, err error, format string, args ...any) *NoticeError {
	return &NoticeError{Key: key, Err: err, Msg: fmt.Sprintf(format, args...)}
}
