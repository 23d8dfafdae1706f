package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// Calculate stages the prorated schedule and prices of every switch item in c.
// Staged values are first reset from the catalog so repeated passes over the same
// cart give the same result. Nothing outside c is modified.
func (s *Service) Calculate(ctx context.Context, c *cart.Cart) error {
	now := s.now().UTC()
	for _, ci := range c.SwitchItems() {
		item, err := s.newItem(ctx, ci, now)
		if err != nil {
			return err
		}
		if err := s.calculateItem(ctx, item); err != nil {
			return err
		}
		s.metrics.observeCalculated(ci.Switch.SwitchType)
		s.logger.DebugContext(ctx, "switch item calculated",
			logger.SubscriptionID(ci.Switch.SubscriptionID),
			logger.SwitchType(ci.Switch.SwitchType),
			slog.String("upgrade_cost", ci.Switch.UpgradeCost.String()),
			slog.Time("first_payment", ci.Switch.FirstPayment))
	}
	return nil
}

// newItem loads the collaborators of a switch item and resets its staged values.
func (s *Service) newItem(ctx context.Context, ci *cart.Item, now time.Time) (*Item, error) {
	sub, err := s.repo.GetSubscription(ctx, ci.Switch.SubscriptionID)
	if err != nil {
		return nil, err
	}
	existing, ok := sub.ItemByID(ci.Switch.ItemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", subscription.ErrItemNotFound, ci.Switch.ItemID)
	}
	product, err := s.catalog.Product(ctx, ci.ProductID)
	if err != nil {
		return nil, err
	}
	existingProduct, err := s.catalog.Product(ctx, existing.CanonicalProductID())
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.OrdersForSubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	resetStaged(ci, product)
	return NewItem(ci, sub, *existing, product, existingProduct, orders, now, s.settings, &s.hooks), nil
}

func resetStaged(ci *cart.Item, p subscription.Product) {
	ci.Price = p.Price
	ci.SignUpFee = p.SignUpFee
	ci.Period = p.Period
	ci.Interval = p.Interval
	ci.Length = p.Length
	ci.TrialLength = p.TrialLength
	ci.TrialPeriod = p.TrialPeriod

	sw := ci.Switch
	sw.NextPayment = time.Time{}
	sw.FirstPayment = time.Time{}
	sw.End = time.Time{}
	sw.NoNextPayment = false
	sw.SwitchType = ""
	sw.UpgradeCost = decimal.Zero
	sw.DaysAdded = 0
	sw.RecurringProrated = false
	sw.SignUpFeeProrated = false
	sw.LengthProrated = false
}

func (s *Service) calculateItem(ctx context.Context, item *Item) error {
	ci, sw := item.CartItem, item.CartItem.Switch

	sw.NextPayment = item.NextPaymentTimestamp()
	sw.FirstPayment = sw.NextPayment
	sw.End = item.EndTimestamp()

	// A switch ends the free trial unless the new product has the same one.
	if !(item.IsSwitchDuringTrial() && item.TrialPeriodsMatch()) {
		ci.TrialLength = 0
		ci.TrialPeriod = ""
	}

	s.applySignUpFee(ctx, item)

	switchType, err := item.SwitchType(ctx)
	if err != nil {
		return err
	}
	sw.SwitchType = string(switchType)

	if s.shouldProrateRecurringPrice(ctx, item, switchType) {
		switch {
		case switchType == Upgrade || item.Product.IsOnePayment():
			if s.shouldReducePrepaidTerm(ctx, item) {
				s.reducePrepaidTerm(item)
			} else {
				s.applyUpgradeCost(ctx, item)
			}
		case switchType == Downgrade && s.shouldExtendPrepaidTerm(ctx, item):
			s.extendPrepaidTerm(item)
		}
	}

	if s.shouldApportionLength(ctx, item) {
		s.apportionLength(item)
	}

	if s.hooks.FirstPayment != nil && !sw.NoNextPayment {
		sw.FirstPayment = s.hooks.FirstPayment(ctx, item, sw.FirstPayment)
	}
	if !sw.FirstPayment.IsZero() && sw.FirstPayment.Before(item.Now()) {
		sw.FirstPayment = time.Time{}
	}
	return nil
}

func (s *Service) applySignUpFee(ctx context.Context, item *Item) {
	ci := item.CartItem
	switch s.settings.ApportionSignUpFee {
	case SignUpFeeNo:
		ci.SignUpFee = decimal.Zero
	case SignUpFeeProrated:
		if !hookBool(ctx, s.hooks.ApportionSignUpFee, item, true) {
			return
		}
		// The fee already paid covers the old quantity; spread it when the quantity grows.
		paid := item.Existing.SignUpFee
		if ci.Quantity > item.Existing.Quantity && item.Existing.Quantity > 0 {
			paid = paid.Mul(decimal.NewFromInt(int64(item.Existing.Quantity))).
				Div(decimal.NewFromInt(int64(ci.Quantity)))
		}
		ci.SignUpFee = decimal.Max(decimal.Zero, ci.SignUpFee.Sub(paid)).Round(s.settings.PriceDecimals)
		ci.Switch.SignUpFeeProrated = true
	}
}

func (s *Service) shouldProrateRecurringPrice(ctx context.Context, item *Item, t SwitchType) bool {
	p := s.settings.ApportionRecurringPrice
	def := p != ProrateRecurringNo &&
		(!p.VirtualOnly() || item.Product.Virtual) &&
		(!p.UpgradeOnly() || t == Upgrade || item.Product.IsOnePayment())
	return hookBool(ctx, s.hooks.ProrateRecurringPrice, item, def)
}

func (s *Service) shouldReducePrepaidTerm(ctx context.Context, item *Item) bool {
	def := (item.IsSwitchDuringTrial() && item.TotalPaidForCurrentPeriod().IsZero() && !item.TrialPeriodsMatch()) ||
		item.DaysInOldCycle() > item.DaysInNewCycle()
	return hookBool(ctx, s.hooks.ReducePrepaidTerm, item, def)
}

func (s *Service) shouldExtendPrepaidTerm(ctx context.Context, item *Item) bool {
	p := s.settings.ApportionRecurringPrice
	def := (p == ProrateRecurringYes || (p == ProrateRecurringVirtual && item.Product.Virtual)) &&
		!item.NextPaymentTimestamp().IsZero()
	return hookBool(ctx, s.hooks.ExtendPrepaidTerm, item, def)
}

func (s *Service) shouldApportionLength(ctx context.Context, item *Item) bool {
	l := s.settings.ApportionLength
	def := l == ProrateLengthYes || (l == ProrateLengthVirtual && item.Product.Virtual)
	return hookBool(ctx, s.hooks.ApportionLength, item, def)
}

// reducePrepaidTerm converts the amount paid into days at the new price. The
// term ends after those days; when they have already elapsed the recurring
// price is charged now.
func (s *Service) reducePrepaidTerm(item *Item) {
	sw := item.CartItem.Switch
	newPPD := item.NewPricePerDay()
	if !newPPD.IsPositive() {
		return
	}
	prePaid := int(item.TotalPaidForCurrentPeriod().Div(newPPD).Round(2).Floor().IntPart())
	if item.DaysSinceLastPayment() < prePaid {
		sw.FirstPayment = item.LastOrderPaidTime().AddDate(0, 0, prePaid)
	} else {
		sw.FirstPayment = time.Time{}
	}
	sw.RecurringProrated = true
}

// applyUpgradeCost charges the price difference for the days left in the paid
// period. One-payment plans also pay the new price for the days between the
// next payment and the new end date, after which no renewal is due.
func (s *Service) applyUpgradeCost(ctx context.Context, item *Item) {
	ci, sw := item.CartItem, item.CartItem.Switch
	daysUntil := decimal.NewFromInt(int64(item.DaysUntilNextPayment()))
	newPPD, oldPPD := item.NewPricePerDay(), item.OldPricePerDay()

	cost := daysUntil.Mul(newPPD.Sub(oldPPD))
	if item.Product.IsOnePayment() && !sw.End.IsZero() && sw.End.After(sw.NextPayment) {
		extra := math.Ceil(subscription.DaysBetween(sw.NextPayment, sw.End))
		cost = cost.Add(decimal.NewFromFloat(extra).Mul(newPPD))
		sw.FirstPayment = time.Time{}
		sw.NoNextPayment = true
	}

	switch {
	case cost.IsNegative() && sw.NoNextPayment:
		cost = decimal.Zero
	case cost.IsNegative():
		// The unused old days are worth more than the difference: charge the new
		// plan in full minus that value and start a new cycle now.
		cost = decimal.Max(decimal.Zero, ci.RecurringTotal().Sub(oldPPD.Mul(daysUntil)))
		sw.FirstPayment = subscription.AddTime(ci.Interval, ci.Period, item.Now())
	}
	if s.hooks.UpgradeCost != nil {
		cost = s.hooks.UpgradeCost(ctx, item, cost)
	}
	cost = cost.Round(s.settings.PriceDecimals)

	sw.UpgradeCost = cost
	if ci.Quantity > 0 && cost.IsPositive() {
		ci.SignUpFee = ci.SignUpFee.Add(cost.Div(decimal.NewFromInt(int64(ci.Quantity))))
	}
	sw.RecurringProrated = true
}

// extendPrepaidTerm converts the unused old days into days at the lower new
// price and pushes the first payment out by the difference.
func (s *Service) extendPrepaidTerm(item *Item) {
	sw := item.CartItem.Switch
	newPPD := item.NewPricePerDay()
	if !newPPD.IsPositive() {
		return
	}
	daysUntil := item.DaysUntilNextPayment()
	owed := item.OldPricePerDay().Mul(decimal.NewFromInt(int64(daysUntil)))
	days := int(owed.Div(newPPD).Floor().IntPart()) - daysUntil
	if days <= 0 {
		return
	}
	sw.DaysAdded = days
	sw.FirstPayment = sw.NextPayment.AddDate(0, 0, days)
	sw.RecurringProrated = true
}

// apportionLength keeps the number of payments left on the old plan.
func (s *Service) apportionLength(item *Item) {
	ci, sw := item.CartItem, item.CartItem.Switch
	base := item.Product.Length
	if base <= 0 {
		return
	}
	ci.Length = RemainingLength(base, item.CompletedPayments())
	sw.End = item.EndTimestamp()
	sw.LengthProrated = true
}

// RemainingLength is base minus completed payments, or base when nothing would remain.
func RemainingLength(base, completedPayments int) int {
	if remaining := base - completedPayments; remaining > 0 {
		return remaining
	}
	return base
}

// IsInvalidSwitchType reports whether err came from a switch type hook.
func IsInvalidSwitchType(err error) bool {
	var e *InvalidSwitchTypeError
	return errors.As(err, &e)
}
