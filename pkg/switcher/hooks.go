package switcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Hooks are the extension points of the switch calculation. Every hook receives
// the computed default and returns the value to use. Nil hooks keep the default.
type Hooks struct {
	// SwitchType may reclassify a switch. Returning anything but upgrade,
	// downgrade or crossgrade fails the calculation with InvalidSwitchTypeError.
	SwitchType func(ctx context.Context, item *Item, computed SwitchType) string

	ProrateRecurringPrice func(ctx context.Context, item *Item, def bool) bool
	ReducePrepaidTerm     func(ctx context.Context, item *Item, def bool) bool
	ExtendPrepaidTerm     func(ctx context.Context, item *Item, def bool) bool
	ApportionLength       func(ctx context.Context, item *Item, def bool) bool
	ApportionSignUpFee    func(ctx context.Context, item *Item, def bool) bool

	// UpgradeCost adjusts the amount charged now for an upgrade.
	UpgradeCost func(ctx context.Context, item *Item, cost decimal.Decimal) decimal.Decimal
	// FirstPayment adjusts the first renewal of the new plan. Zero charges the recurring price now.
	// It is not called when the switch pays a one-payment plan up to its end date.
	FirstPayment func(ctx context.Context, item *Item, first time.Time) time.Time
}

func hookBool(ctx context.Context, fn func(context.Context, *Item, bool) bool, item *Item, def bool) bool {
	if fn == nil {
		return def
	}
	return fn(ctx, item, def)
}
