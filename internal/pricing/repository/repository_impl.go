package repository

import (
	"context"
	"errors"

	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() pricingdomain.Repository {
	return &repo{}
}

func (r *repo) GetGlobal(ctx context.Context, db *gorm.DB) (*pricingdomain.GlobalConfig, error) {
	var cfg pricingdomain.GlobalConfig
	err := db.WithContext(ctx).
		Where("id = ?", pricingdomain.GlobalConfigID).
		Take(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) InsertGlobal(ctx context.Context, db *gorm.DB, cfg *pricingdomain.GlobalConfig) error {
	cfg.ID = pricingdomain.GlobalConfigID
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) UpdateGlobal(ctx context.Context, db *gorm.DB, cfg *pricingdomain.GlobalConfig, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&pricingdomain.GlobalConfig{}).
		Where("id = ? AND version = ?", pricingdomain.GlobalConfigID, expectedVersion).
		Updates(map[string]any{
			"cost_per_minute":     cfg.Rates.CostPerMinute,
			"markup_percent":      cfg.Rates.MarkupPercent,
			"annual_license_cost": cfg.Rates.AnnualLicenseCost,
			"version":             expectedVersion + 1,
			"updated_at":          cfg.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	cfg.Version = expectedVersion + 1
	return true, nil
}

func (r *repo) GetOverride(ctx context.Context, db *gorm.DB, institutionID string) (*pricingdomain.Override, error) {
	var o pricingdomain.Override
	err := db.WithContext(ctx).
		Where("institution_id = ?", institutionID).
		Take(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *repo) InsertOverride(ctx context.Context, db *gorm.DB, o *pricingdomain.Override) error {
	return db.WithContext(ctx).Create(o).Error
}

func (r *repo) UpdateOverride(ctx context.Context, db *gorm.DB, o *pricingdomain.Override, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&pricingdomain.Override{}).
		Where("institution_id = ? AND version = ?", o.InstitutionID, expectedVersion).
		Updates(map[string]any{
			"cost_per_minute":     o.Rates.CostPerMinute,
			"markup_percent":      o.Rates.MarkupPercent,
			"annual_license_cost": o.Rates.AnnualLicenseCost,
			"enabled":             o.Enabled,
			"version":             expectedVersion + 1,
			"updated_at":          o.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	o.Version = expectedVersion + 1
	return true, nil
}

func (r *repo) ListOverrides(ctx context.Context, db *gorm.DB) ([]pricingdomain.Override, error) {
	var items []pricingdomain.Override
	err := db.WithContext(ctx).
		Order("institution_id ASC").
		Find(&items).Error
	return items, err
}
