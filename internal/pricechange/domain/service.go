package domain

import (
	"context"
	"time"

	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/shopspring/decimal"
)

type ScheduleRequest struct {
	Scope         pricingdomain.Scope `json:"scope"`
	InstitutionID string              `json:"institution_id"`
	Field         pricingdomain.Field `json:"field"`
	NewValue      decimal.Decimal     `json:"new_value"`

	// EffectiveDate nil applies the value immediately and records nothing.
	EffectiveDate *time.Time `json:"effective_date"`
}

type ListRequest struct {
	Status        string `json:"status" form:"status"`
	Scope         string `json:"scope" form:"scope"`
	InstitutionID string `json:"institution_id" form:"institution_id"`
	Field         string `json:"field" form:"field"`
	Limit         int    `json:"limit" form:"limit"`
}

// TickResult summarises one scheduler pass.
type TickResult struct {
	RunID      string    `json:"run_id"`
	Now        time.Time `json:"now"`
	Due        int       `json:"due"`
	Applied    int       `json:"applied"`
	Superseded int       `json:"superseded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

type Service interface {
	Schedule(ctx context.Context, req ScheduleRequest) (*PriceChange, error)
	Cancel(ctx context.Context, id string) (*PriceChange, error)
	Get(ctx context.Context, id string) (*PriceChange, error)
	List(ctx context.Context, req ListRequest) ([]PriceChange, error)

	// Tick applies every scheduled change due at now. It is safe to call
	// repeatedly and concurrently.
	Tick(ctx context.Context, now time.Time) (TickResult, error)
}
