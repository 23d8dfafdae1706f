package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrItemNotFound         = errors.New("line item not found")

	ErrInvalidBillingPeriod   = errors.New("invalid billing period")
	ErrInvalidBillingInterval = errors.New("billing interval must be positive")
	ErrInvalidProduct         = errors.New("invalid subscription product")

	ErrFailedToLoadProducts = errors.New("failed to load subscription products")
	ErrFailedToParseCatalog = errors.New("failed to parse product catalog")
)
