package subscription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a subscription product or product variation.
// Length is counted in billing periods, 0 means the subscription never expires.
type Product struct {
	ID           uuid.UUID       `json:"id" yaml:"id"`
	ParentID     uuid.UUID       `json:"parent_id,omitempty" yaml:"parent_id"`
	Name         string          `json:"name" yaml:"name"`
	Price        decimal.Decimal `json:"price" yaml:"price"`
	SignUpFee    decimal.Decimal `json:"sign_up_fee" yaml:"sign_up_fee"`
	Period       BillingPeriod   `json:"period" yaml:"period"`
	Interval     int             `json:"interval" yaml:"interval"`
	Length       int             `json:"length" yaml:"length"`
	TrialLength  int             `json:"trial_length" yaml:"trial_length"`
	TrialPeriod  BillingPeriod   `json:"trial_period,omitempty" yaml:"trial_period"`
	Virtual      bool            `json:"virtual" yaml:"virtual"`
	Downloadable bool            `json:"downloadable" yaml:"downloadable"`
	Synced       bool            `json:"synced" yaml:"synced"`
	GroupID      string          `json:"group_id,omitempty" yaml:"group_id"`
}

// Schedule returns the product's billing schedule.
func (p Product) Schedule() Schedule {
	return Schedule{Period: p.Period, Interval: p.Interval}
}

// IsVariation reports whether the product is a variation of a variable product.
func (p Product) IsVariation() bool { return p.ParentID != uuid.Nil }

// IsOnePayment reports whether the product is paid for with a single payment.
func (p Product) IsOnePayment() bool {
	return p.Length > 0 && p.Length == p.Interval
}

// HasTrial reports whether the product starts with a free trial.
func (p Product) HasTrial() bool {
	return p.TrialLength > 0 && p.TrialPeriod.Valid()
}

// TrialMatches reports whether both products have the same trial length and period.
func (p Product) TrialMatches(other Product) bool {
	if !p.HasTrial() && !other.HasTrial() {
		return true
	}
	return p.TrialLength == other.TrialLength && p.TrialPeriod == other.TrialPeriod
}

// Validate checks the product's billing configuration.
func (p Product) Validate() error {
	var errs []error
	if p.ID == uuid.Nil {
		errs = append(errs, errors.New("product id is required"))
	}
	if !p.Period.Valid() {
		errs = append(errs, ErrInvalidBillingPeriod)
	}
	if p.Interval < 1 {
		errs = append(errs, ErrInvalidBillingInterval)
	}
	if p.Length < 0 {
		errs = append(errs, errors.New("length must not be negative"))
	}
	if p.Price.IsNegative() || p.SignUpFee.IsNegative() {
		errs = append(errs, errors.New("prices must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(fmt.Errorf("%w: %s", ErrInvalidProduct, p.ID), errors.Join(errs...))
	}
	return nil
}
