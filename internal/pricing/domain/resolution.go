package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceGlobal   Source = "global"
	SourceOverride Source = "override"
)

// Snapshot is the store state a resolution is computed from.
type Snapshot struct {
	Global     Rates          `json:"global"`
	Override   *OverrideState `json:"override,omitempty"`
	CapturedAt time.Time      `json:"captured_at"`
}

type OverrideState struct {
	Rates   Rates `json:"rates"`
	Enabled bool  `json:"enabled"`
}

// Resolution is the effective rate triple of an institution plus the
// numbers derived from it.
type Resolution struct {
	InstitutionID       string          `json:"institution_id,omitempty"`
	Rates               Rates           `json:"rates"`
	Source              Source          `json:"source"`
	SessionPrice        decimal.Decimal `json:"session_price"`
	MarginPerMinute     decimal.Decimal `json:"margin_per_minute"`
	QuarterlyLicenseFee decimal.Decimal `json:"quarterly_license_fee"`

	// Stale is set when storage was unreachable and the numbers come from the
	// last-known-good snapshot captured at StaleSince.
	Stale      bool       `json:"stale"`
	StaleSince *time.Time `json:"stale_since,omitempty"`
}

var (
	hundred  = decimal.NewFromInt(100)
	quarters = decimal.NewFromInt(4)
)

// SessionPrice is cost per minute plus markup, rounded half-up to cents.
func SessionPrice(r Rates) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(r.MarkupPercent.Div(hundred))
	return r.CostPerMinute.Mul(factor).Round(2)
}

func MarginPerMinute(r Rates) decimal.Decimal {
	return r.CostPerMinute.Mul(r.MarkupPercent).Div(hundred)
}

func QuarterlyLicenseFee(r Rates) decimal.Decimal {
	return r.AnnualLicenseCost.Div(quarters)
}

// Resolve computes the effective pricing of an institution from a snapshot.
// It is pure: equal snapshots always give equal resolutions.
func Resolve(institutionID string, snap Snapshot) Resolution {
	rates := snap.Global
	source := SourceGlobal
	if institutionID != "" && snap.Override != nil && snap.Override.Enabled {
		rates = snap.Override.Rates
		source = SourceOverride
	}

	return Resolution{
		InstitutionID:       institutionID,
		Rates:               rates,
		Source:              source,
		SessionPrice:        SessionPrice(rates),
		MarginPerMinute:     MarginPerMinute(rates),
		QuarterlyLicenseFee: QuarterlyLicenseFee(rates),
	}
}
