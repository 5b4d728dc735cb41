package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusApplied   Status = "applied"
	StatusCancelled Status = "cancelled"
)

// PriceChange is a future-dated write of one rate field. It moves from
// scheduled to applied or cancelled exactly once and never back.
type PriceChange struct {
	ID            snowflake.ID        `gorm:"primaryKey" json:"id"`
	Scope         pricingdomain.Scope `gorm:"type:varchar(16);not null" json:"scope"`
	InstitutionID *string             `gorm:"type:varchar(64);index" json:"institution_id,omitempty"`
	Field         pricingdomain.Field `gorm:"type:varchar(32);not null" json:"field"`
	PreviousValue decimal.Decimal     `gorm:"type:numeric(14,4);not null" json:"previous_value"`
	NewValue      decimal.Decimal     `gorm:"type:numeric(14,4);not null" json:"new_value"`
	EffectiveDate time.Time           `gorm:"not null;index" json:"effective_date"`
	Status        Status              `gorm:"type:varchar(16);not null;index" json:"status"`

	// Superseded marks a change that became due after a later-dated change to
	// the same field had already been applied. It is recorded as applied but
	// its value was never written.
	Superseded bool `gorm:"not null;default:false" json:"superseded"`

	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   *string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedBy   *string    `gorm:"type:varchar(128)" json:"created_by,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (PriceChange) TableName() string { return "price_changes" }

func (c *PriceChange) Target() pricingdomain.Target {
	if c.Scope == pricingdomain.ScopeInstitution && c.InstitutionID != nil {
		return pricingdomain.InstitutionTarget(*c.InstitutionID)
	}
	return pricingdomain.GlobalTarget()
}

// GroupKey identifies the (scope, field) pair whose changes must apply one
// at a time.
func (c *PriceChange) GroupKey() string {
	return c.Target().Key() + "|" + string(c.Field)
}

// Before orders changes by effective date, then creation time, then id.
func (c *PriceChange) Before(other *PriceChange) bool {
	if !c.EffectiveDate.Equal(other.EffectiveDate) {
		return c.EffectiveDate.Before(other.EffectiveDate)
	}
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

func (c *PriceChange) IsDue(now time.Time) bool {
	return c.Status == StatusScheduled && !c.EffectiveDate.After(now)
}
