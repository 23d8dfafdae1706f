package subscription_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Product(ctx context.Context, id uuid.UUID) (subscription.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(subscription.Product), args.Error(1)
}

func TestCachedCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := subscription.Product{ID: uuid.New(), Name: "Monthly"}
	next := &mockCatalog{}
	next.On("Product", ctx, p.ID).Return(p, nil).Twice()
	missing := uuid.New()
	next.On("Product", ctx, missing).Return(subscription.Product{}, subscription.ErrProductNotFound).Once()

	c := subscription.NewCachedCatalog(next, 8, time.Hour)

	for range 3 {
		got, err := c.Product(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Monthly", got.Name)
	}

	c.Invalidate(p.ID)
	_, err := c.Product(ctx, p.ID)
	require.NoError(t, err)

	_, err = c.Product(ctx, missing)
	assert.ErrorIs(t, err, subscription.ErrProductNotFound)

	next.AssertExpectations(t)
}

const catalogYAML = `
products:
  - id: 6f1c1b7e-4a55-4a36-9c4b-8d2a5f0d1a01
    name: Monthly
    price: "10.00"
    sign_up_fee: "5.00"
    period: month
    interval: 1
    virtual: true
  - id: 6f1c1b7e-4a55-4a36-9c4b-8d2a5f0d1a02
    name: Weekly
    price: "5.00"
    period: week
    interval: 1
    trial_length: 7
    trial_period: day
`

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("yaml source", func(t *testing.T) {
		t.Parallel()
		cat, err := subscription.LoadCatalog(ctx, subscription.NewYAMLCatalogSource(strings.NewReader(catalogYAML)))
		require.NoError(t, err)

		p, err := cat.Product(ctx, uuid.MustParse("6f1c1b7e-4a55-4a36-9c4b-8d2a5f0d1a01"))
		require.NoError(t, err)
		assert.Equal(t, "Monthly", p.Name)
		assert.True(t, decimal.NewFromInt(10).Equal(p.Price))
		assert.True(t, decimal.NewFromInt(5).Equal(p.SignUpFee))
		assert.True(t, p.Virtual)

		weekly, err := cat.Product(ctx, uuid.MustParse("6f1c1b7e-4a55-4a36-9c4b-8d2a5f0d1a02"))
		require.NoError(t, err)
		assert.True(t, weekly.HasTrial())

		_, err = cat.Product(ctx, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrProductNotFound)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.LoadCatalog(ctx, subscription.NewYAMLCatalogSource(strings.NewReader("products: [")))
		assert.ErrorIs(t, err, subscription.ErrFailedToLoadProducts)
		assert.ErrorIs(t, err, subscription.ErrFailedToParseCatalog)
	})

	t.Run("invalid product", func(t *testing.T) {
		t.Parallel()
		src := subscription.NewMemoryCatalog(subscription.Product{ID: uuid.New(), Period: subscription.PeriodMonth})
		_, err := subscription.LoadCatalog(ctx, src)
		assert.ErrorIs(t, err, subscription.ErrInvalidBillingInterval)
	})
}
