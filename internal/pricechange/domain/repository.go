package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status        Status
	Scope         pricingdomain.Scope
	InstitutionID string
	Field         pricingdomain.Field
	Limit         int
}

// Cursor is the ordering key of the last change a tick has read.
type Cursor struct {
	EffectiveDate time.Time
	CreatedAt     time.Time
	ID            snowflake.ID
}

func CursorOf(c *PriceChange) *Cursor {
	return &Cursor{EffectiveDate: c.EffectiveDate, CreatedAt: c.CreatedAt, ID: c.ID}
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, change *PriceChange) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PriceChange, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]PriceChange, error)

	// ListDue returns scheduled changes effective at or before now, in
	// ordering-key order, strictly after the cursor when one is given.
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, after *Cursor, limit int) ([]PriceChange, error)

	// LatestApplied returns the applied change with the greatest ordering key
	// for the change's (scope, field), or nil.
	LatestApplied(ctx context.Context, db *gorm.DB, change *PriceChange) (*PriceChange, error)

	// MarkApplied and MarkCancelled only succeed while the row is still
	// scheduled; false means another caller moved it first.
	MarkApplied(ctx context.Context, db *gorm.DB, id snowflake.ID, appliedAt time.Time, superseded bool) (bool, error)
	MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, cancelledAt time.Time) (bool, error)
	RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error
}
