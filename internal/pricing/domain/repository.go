package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the pricing persistence port. Update methods are
// conditional on the expected version and report false when another writer
// got there first.
type Repository interface {
	GetGlobal(ctx context.Context, db *gorm.DB) (*GlobalConfig, error)
	InsertGlobal(ctx context.Context, db *gorm.DB, cfg *GlobalConfig) error
	UpdateGlobal(ctx context.Context, db *gorm.DB, cfg *GlobalConfig, expectedVersion int64) (bool, error)

	GetOverride(ctx context.Context, db *gorm.DB, institutionID string) (*Override, error)
	InsertOverride(ctx context.Context, db *gorm.DB, o *Override) error
	UpdateOverride(ctx context.Context, db *gorm.DB, o *Override, expectedVersion int64) (bool, error)
	ListOverrides(ctx context.Context, db *gorm.DB) ([]Override, error)
}

// SnapshotCache keeps the last-known-good snapshot per institution, used
// only when storage is unreachable.
type SnapshotCache interface {
	Save(ctx context.Context, institutionID string, snap Snapshot) error
	Load(ctx context.Context, institutionID string) (*Snapshot, error)
}
