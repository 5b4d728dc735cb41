package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	InsertPurchase(ctx context.Context, db *gorm.DB, p *Purchase) error
	FindPurchase(ctx context.Context, db *gorm.DB, id string) (*Purchase, error)
	FindPurchaseByReference(ctx context.Context, db *gorm.DB, reference string) (*Purchase, error)
	ListPurchases(ctx context.Context, db *gorm.DB, institutionID string, limit int) ([]Purchase, error)

	// TransitionPurchase moves a purchase from one status to another and
	// reports false when it was no longer in the from status.
	TransitionPurchase(ctx context.Context, db *gorm.DB, id string, from, to PurchaseStatus, at time.Time) (bool, error)

	GetPool(ctx context.Context, db *gorm.DB, institutionID string) (*SessionPool, error)
	InsertPool(ctx context.Context, db *gorm.DB, pool *SessionPool) error
	// UpdatePool writes totals only if the stored version still matches.
	UpdatePool(ctx context.Context, db *gorm.DB, pool *SessionPool, expectedVersion int64) (bool, error)
}
