package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages the pricing store.
type Service interface {
	GetGlobal(ctx context.Context) (*GlobalConfig, error)
	GetOverride(ctx context.Context, institutionID string) (*Override, error)
	ListOverrides(ctx context.Context) ([]Override, error)
	EnableOverride(ctx context.Context, institutionID string) (*Override, error)
	DisableOverride(ctx context.Context, institutionID string) (*Override, error)

	// CurrentValue returns the stored value of field on target. For an
	// institution without an override it is the global value.
	CurrentValue(ctx context.Context, db *gorm.DB, target Target, field Field) (decimal.Decimal, error)

	// WriteField performs one conditional write of field on target using db,
	// which may be a transaction. It returns apperr.ErrConflict when the
	// row changed underneath; callers retry.
	WriteField(ctx context.Context, db *gorm.DB, target Target, field Field, value decimal.Decimal) (previous decimal.Decimal, err error)

	// ApplyField is WriteField with bounded conflict retries on its own
	// connection.
	ApplyField(ctx context.Context, target Target, field Field, value decimal.Decimal) (previous decimal.Decimal, err error)

	ValidateValue(field Field, value decimal.Decimal) error
}

// Resolver resolves effective pricing.
type Resolver interface {
	Resolve(ctx context.Context, institutionID string) (*Resolution, error)
}
