package switcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// SwitchRequest asks to replace a subscription line with another product.
type SwitchRequest struct {
	SubscriptionID uuid.UUID `json:"subscription_id" validate:"required"`
	ItemID         uuid.UUID `json:"item_id" validate:"required"`
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	Quantity       int       `json:"quantity" validate:"min=1"`
}

// AddSwitch validates req against the subscription and catalog and adds a switch item to c.
// Any previous switch of the same line is replaced.
func (s *Service) AddSwitch(ctx context.Context, c *cart.Cart, req SwitchRequest) (*cart.Item, error) {
	if err := validate().Struct(req); err != nil {
		return nil, errors.Join(cart.ErrInvalidItem, err)
	}
	product, err := s.catalog.Product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	item := cart.Item{
		Key:       "switch-" + req.ItemID.String(),
		ProductID: product.ID,
		Quantity:  req.Quantity,
		Switch:    &cart.SwitchDetails{SubscriptionID: req.SubscriptionID, ItemID: req.ItemID},
	}
	resetStaged(&item, product)

	if err := s.validateItem(ctx, c, &item); err != nil {
		return nil, err
	}
	_ = c.Remove(item.Key)
	c.Items = append(c.Items, item)
	ci, _ := c.Item(item.Key)
	return ci, nil
}

// ValidateCart checks every switch item. Invalid items are removed and a notice
// explaining why is added to the cart. Only infrastructure failures are returned.
func (s *Service) ValidateCart(ctx context.Context, c *cart.Cart) error {
	keys := lo.Map(c.SwitchItems(), func(ci *cart.Item, _ int) string { return ci.Key })
	seen := make(map[uuid.UUID]string)
	for _, key := range keys {
		ci, ok := c.Item(key)
		if !ok {
			continue
		}
		err := s.validateItem(ctx, c, ci)
		if err == nil {
			if key, dup := seen[ci.Switch.ItemID]; dup && key != ci.Key {
				err = notice(ci.Key, ErrDuplicateSwitch, "You can only switch a subscription item once per order.")
			}
			seen[ci.Switch.ItemID] = ci.Key
		}
		if err == nil {
			continue
		}
		var n *NoticeError
		if !errors.As(err, &n) {
			return err
		}
		s.logger.InfoContext(ctx, "switch item removed from cart",
			logger.SubscriptionID(ci.Switch.SubscriptionID), logger.Error(n.Err))
		c.AddNotice(cart.NoticeError, n.Msg)
		s.metrics.observeRejected()
		if err := c.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) validateItem(ctx context.Context, c *cart.Cart, ci *cart.Item) error {
	if err := validate().Struct(ci); err != nil {
		return notice(ci.Key, errors.Join(cart.ErrInvalidItem, err), "This item can not be switched.")
	}
	sub, err := s.repo.GetSubscription(ctx, ci.Switch.SubscriptionID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return notice(ci.Key, err, "The subscription you are switching no longer exists.")
	}
	if err != nil {
		return err
	}
	if c.CustomerID != uuid.Nil && sub.CustomerID != c.CustomerID {
		return notice(ci.Key, ErrNotOwner, "You can only switch your own subscriptions.")
	}
	if !sub.IsActive() {
		return notice(ci.Key, ErrSubscriptionInactive, "Subscriptions with status %q can not be switched.", sub.Status)
	}
	existing, ok := sub.ItemByID(ci.Switch.ItemID)
	if !ok || existing.Type != subscription.ItemTypeLineItem {
		return notice(ci.Key, subscription.ErrItemNotFound, "The subscription item you are switching no longer exists.")
	}

	product, err := s.catalog.Product(ctx, ci.ProductID)
	if errors.Is(err, subscription.ErrProductNotFound) {
		return notice(ci.Key, err, "The product you are switching to is not available.")
	}
	if err != nil {
		return err
	}
	current, err := s.catalog.Product(ctx, existing.CanonicalProductID())
	if errors.Is(err, subscription.ErrProductNotFound) {
		return notice(ci.Key, err, "The product you are switching from is no longer available.")
	}
	if err != nil {
		return err
	}

	if product.ID == current.ID && ci.Quantity == existing.Quantity {
		return notice(ci.Key, ErrSameProduct, "You are already subscribed to %s.", product.Name)
	}
	if !s.canSwitch(current, product) {
		return notice(ci.Key, ErrSwitchNotAllowed, "You can not switch from %s to %s.", current.Name, product.Name)
	}
	return nil
}

// canSwitch applies the store's switch scope: variations of the same product,
// products of the same group, or both.
func (s *Service) canSwitch(from, to subscription.Product) bool {
	if from.ID == to.ID {
		return s.settings.AllowSwitching != SwitchNone
	}
	variable := from.IsVariation() && to.IsVariation() && from.ParentID == to.ParentID
	grouped := from.GroupID != "" && from.GroupID == to.GroupID
	switch s.settings.AllowSwitching {
	case SwitchVariable:
		return variable
	case SwitchGrouped:
		return grouped
	case SwitchVariableGrouped:
		return variable || grouped
	}
	return false
}

// PrepareCart validates the cart and recalculates every switch item.
func (s *Service) PrepareCart(ctx context.Context, c *cart.Cart) error {
	if err := s.ValidateCart(ctx, c); err != nil {
		return fmt.Errorf("validate cart: %w", err)
	}
	return s.Calculate(ctx, c)
}
