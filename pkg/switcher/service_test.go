package switcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/subscription"
	"github.com/dmitrymomot/switchkit/pkg/switcher"
)

func TestNew(t *testing.T) {
	t.Parallel()

	repo, catalog := subscription.NewMemoryStore(), subscription.NewMemoryCatalog()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		svc, err := switcher.New(repo, catalog)
		require.NoError(t, err)
		assert.Equal(t, switcher.DefaultSettings(), svc.Settings())
		assert.NotNil(t, svc.Lifecycle())
	})

	t.Run("requires collaborators", func(t *testing.T) {
		t.Parallel()
		_, err := switcher.New(nil, catalog)
		assert.Error(t, err)
	})

	t.Run("invalid settings", func(t *testing.T) {
		t.Parallel()
		settings := switcher.DefaultSettings()
		settings.ApportionLength = "sometimes"

		_, err := switcher.New(repo, catalog, switcher.WithSettings(settings))
		assert.ErrorIs(t, err, switcher.ErrInvalidSettings)
		assert.Panics(t, func() { switcher.MustNew(repo, catalog, switcher.WithSettings(settings)) })
	})
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("SWITCH_APPORTION_RECURRING_PRICE", "virtual-upgrade")
	t.Setenv("SWITCH_APPORTION_SIGN_UP_FEE", "full")
	t.Setenv("SWITCH_PAYMENT_COMPLETE_STATUS", "completed")

	settings, err := switcher.LoadSettings()
	require.NoError(t, err)
	require.NoError(t, settings.Validate())

	assert.Equal(t, switcher.ProrateRecurringVirtualUpgrade, settings.ApportionRecurringPrice)
	assert.True(t, settings.ApportionRecurringPrice.UpgradeOnly())
	assert.True(t, settings.ApportionRecurringPrice.VirtualOnly())
	assert.Equal(t, switcher.SignUpFeeFull, settings.ApportionSignUpFee)
	assert.Equal(t, switcher.ProrateLengthYes, settings.ApportionLength)
	assert.Equal(t, []subscription.OrderStatus{subscription.OrderStatusCompleted}, settings.PaymentCompleteStatuses)
	assert.Equal(t, int32(2), settings.PriceDecimals)
}
