package domain

import (
	"github.com/shopspring/decimal"
)

// Field names one member of the rate triple.
type Field string

const (
	FieldCostPerMinute     Field = "cost_per_minute"
	FieldMarkupPercent     Field = "markup_percent"
	FieldAnnualLicenseCost Field = "annual_license_cost"
)

func (f Field) Valid() bool {
	switch f {
	case FieldCostPerMinute, FieldMarkupPercent, FieldAnnualLicenseCost:
		return true
	default:
		return false
	}
}

// Rates is the rate triple an institution is billed on.
type Rates struct {
	CostPerMinute     decimal.Decimal `gorm:"column:cost_per_minute;type:numeric(14,4);not null" json:"cost_per_minute"`
	MarkupPercent     decimal.Decimal `gorm:"column:markup_percent;type:numeric(9,4);not null" json:"markup_percent"`
	AnnualLicenseCost decimal.Decimal `gorm:"column:annual_license_cost;type:numeric(14,4);not null" json:"annual_license_cost"`
}

func (r Rates) Get(f Field) decimal.Decimal {
	switch f {
	case FieldCostPerMinute:
		return r.CostPerMinute
	case FieldMarkupPercent:
		return r.MarkupPercent
	case FieldAnnualLicenseCost:
		return r.AnnualLicenseCost
	default:
		return decimal.Zero
	}
}

// With returns a copy of r with f set to v.
func (r Rates) With(f Field, v decimal.Decimal) Rates {
	switch f {
	case FieldCostPerMinute:
		r.CostPerMinute = v
	case FieldMarkupPercent:
		r.MarkupPercent = v
	case FieldAnnualLicenseCost:
		r.AnnualLicenseCost = v
	}
	return r
}

// ValidateValue checks a single field value against the rate invariants.
func ValidateValue(f Field, v decimal.Decimal, markupCeiling decimal.Decimal) error {
	if !f.Valid() {
		return ErrInvalidField
	}
	if v.IsNegative() {
		return ErrNegativeRate
	}
	if f == FieldMarkupPercent && v.GreaterThan(markupCeiling) {
		return ErrMarkupAboveCeiling
	}
	return nil
}

func (r Rates) Validate(markupCeiling decimal.Decimal) error {
	for _, f := range []Field{FieldCostPerMinute, FieldMarkupPercent, FieldAnnualLicenseCost} {
		if err := ValidateValue(f, r.Get(f), markupCeiling); err != nil {
			return err
		}
	}
	return nil
}

func (r Rates) Equal(other Rates) bool {
	return r.CostPerMinute.Equal(other.CostPerMinute) &&
		r.MarkupPercent.Equal(other.MarkupPercent) &&
		r.AnnualLicenseCost.Equal(other.AnnualLicenseCost)
}
