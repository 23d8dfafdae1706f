package subscription

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionStore defines subscription persistence.
type SubscriptionStore interface {
	// GetSubscription returns ErrSubscriptionNotFound if no subscription exists.
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// SaveSubscription creates or updates a subscription.
	SaveSubscription(ctx context.Context, sub *Subscription) error
}

// OrderStore defines order persistence.
type OrderStore interface {
	// GetOrder returns ErrOrderNotFound if no order exists.
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	// LockOrder loads an order and holds a row lock until the surrounding
	// transaction ends. Outside of a transaction it behaves like GetOrder.
	LockOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	SaveOrder(ctx context.Context, order *Order) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	// OrdersForSubscription returns every order related to the subscription, newest first.
	OrdersForSubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Order, error)
}

// Repository groups the stores used by the switching engine.
type Repository interface {
	SubscriptionStore
	OrderStore

	// WithTx runs fn in a transaction. Changes made through tx are committed
	// when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}

// Catalog resolves products by id.
type Catalog interface {
	// Product returns ErrProductNotFound if the product does not exist.
	Product(ctx context.Context, id uuid.UUID) (Product, error)
}

// ProductsSource loads a full product list, e.g. from a fixture file.
type ProductsSource interface {
	Load(ctx context.Context) (map[uuid.UUID]Product, error)
}
