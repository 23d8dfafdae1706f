package switcher

import (
	"github.com/dmitrymomot/switchkit/pkg/config"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// RecurringProration controls when the recurring price of a switch is prorated.
type RecurringProration string

const (
	ProrateRecurringNo             RecurringProration = "no"
	ProrateRecurringVirtualUpgrade RecurringProration = "virtual-upgrade"
	ProrateRecurringUpgrade        RecurringProration = "yes-upgrade"
	ProrateRecurringVirtual        RecurringProration = "virtual"
	ProrateRecurringYes            RecurringProration = "yes"
)

// UpgradeOnly reports whether downgrades keep the paid term unchanged.
func (p RecurringProration) UpgradeOnly() bool {
	return p == ProrateRecurringVirtualUpgrade || p == ProrateRecurringUpgrade
}

// VirtualOnly reports whether only virtual products are prorated.
func (p RecurringProration) VirtualOnly() bool {
	return p == ProrateRecurringVirtualUpgrade || p == ProrateRecurringVirtual
}

// SignUpFeeProration controls the sign-up fee charged by a switch.
type SignUpFeeProration string

const (
	// SignUpFeeNo never charges a sign-up fee on switch.
	SignUpFeeNo SignUpFeeProration = "no"
	// SignUpFeeFull charges the new product's full sign-up fee.
	SignUpFeeFull SignUpFeeProration = "full"
	// SignUpFeeProrated charges the difference to the fee already paid.
	SignUpFeeProrated SignUpFeeProration = "yes"
)

// LengthProration controls whether a switch keeps the remaining length of the old plan.
type LengthProration string

const (
	ProrateLengthNo      LengthProration = "no"
	ProrateLengthVirtual LengthProration = "virtual"
	ProrateLengthYes     LengthProration = "yes"
)

// SwitchScope controls which products a line may be switched to.
type SwitchScope string

const (
	SwitchNone            SwitchScope = "no"
	SwitchVariable        SwitchScope = "variable"
	SwitchGrouped         SwitchScope = "grouped"
	SwitchVariableGrouped SwitchScope = "variable_grouped"
)

// Settings are the store-level switching policies.
type Settings struct {
	ApportionRecurringPrice RecurringProration `env:"SWITCH_APPORTION_RECURRING_PRICE" envDefault:"yes" validate:"oneof=no virtual-upgrade yes-upgrade virtual yes"`
	ApportionSignUpFee      SignUpFeeProration `env:"SWITCH_APPORTION_SIGN_UP_FEE" envDefault:"yes" validate:"oneof=no full yes"`
	ApportionLength         LengthProration    `env:"SWITCH_APPORTION_LENGTH" envDefault:"yes" validate:"oneof=no virtual yes"`
	AllowSwitching          SwitchScope        `env:"SWITCH_ALLOW" envDefault:"variable_grouped" validate:"oneof=no variable grouped variable_grouped"`

	// PricesIncludeTax counts line tax as part of the amount paid.
	PricesIncludeTax bool `env:"SWITCH_PRICES_INCLUDE_TAX" envDefault:"false"`
	// PaymentCompleteStatuses are the order statuses that trigger the switch commit.
	PaymentCompleteStatuses []subscription.OrderStatus `env:"SWITCH_PAYMENT_COMPLETE_STATUS" envDefault:"processing,completed" validate:"min=1,dive,oneof=processing completed on-hold"`
	// SyncProrateFirstRenewal prorates synced products during their first cycle
	// by the actual days between payments rather than a full cycle.
	SyncProrateFirstRenewal bool `env:"SWITCH_SYNC_PRORATE_FIRST_RENEWAL" envDefault:"false"`
	// PriceDecimals is the rounding precision of charged amounts.
	PriceDecimals int32 `env:"SWITCH_PRICE_DECIMALS" envDefault:"2" validate:"min=0,max=8"`
}

// DefaultSettings prorates everything, the way LoadSettings does without environment overrides.
func DefaultSettings() Settings {
	return Settings{
		ApportionRecurringPrice: ProrateRecurringYes,
		ApportionSignUpFee:      SignUpFeeProrated,
		ApportionLength:         ProrateLengthYes,
		AllowSwitching:          SwitchVariableGrouped,
		PaymentCompleteStatuses: subscription.PaidStatuses,
		PriceDecimals:           2,
	}
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := config.Load(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings' enumerations.
func (s Settings) Validate() error {
	return config.Validate(s)
}
