package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"gorm.io/gorm"
)

const defaultListLimit = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, change *domain.PriceChange) error {
	return db.WithContext(ctx).Create(change).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PriceChange, error) {
	var change domain.PriceChange
	err := db.WithContext(ctx).Where("id = ?", id).Take(&change).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &change, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.PriceChange, error) {
	query := db.WithContext(ctx).Model(&domain.PriceChange{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Scope != "" {
		query = query.Where("scope = ?", filter.Scope)
	}
	if filter.InstitutionID != "" {
		query = query.Where("institution_id = ?", filter.InstitutionID)
	}
	if filter.Field != "" {
		query = query.Where("field = ?", filter.Field)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var items []domain.PriceChange
	err := query.
		Order("effective_date ASC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, after *domain.Cursor, limit int) ([]domain.PriceChange, error) {
	query := db.WithContext(ctx).
		Where("status = ? AND effective_date <= ?", domain.StatusScheduled, now.UTC())
	if after != nil {
		query = query.Where(
			"effective_date > ? OR (effective_date = ? AND (created_at > ? OR (created_at = ? AND id > ?)))",
			after.EffectiveDate, after.EffectiveDate, after.CreatedAt, after.CreatedAt, after.ID,
		)
	}
	query = query.
		Order("effective_date ASC").
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []domain.PriceChange
	err := query.Find(&items).Error
	return items, err
}

func (r *repo) LatestApplied(ctx context.Context, db *gorm.DB, change *domain.PriceChange) (*domain.PriceChange, error) {
	query := db.WithContext(ctx).
		Where("status = ? AND scope = ? AND field = ?", domain.StatusApplied, change.Scope, change.Field)
	if change.Scope == pricingdomain.ScopeInstitution && change.InstitutionID != nil {
		query = query.Where("institution_id = ?", *change.InstitutionID)
	} else {
		query = query.Where("institution_id IS NULL")
	}

	var latest domain.PriceChange
	err := query.
		Order("effective_date DESC").
		Order("created_at DESC").
		Order("id DESC").
		Take(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &latest, nil
}

func (r *repo) MarkApplied(ctx context.Context, db *gorm.DB, id snowflake.ID, appliedAt time.Time, superseded bool) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.PriceChange{}).
		Where("id = ? AND status = ?", id, domain.StatusScheduled).
		Updates(map[string]any{
			"status":     domain.StatusApplied,
			"superseded": superseded,
			"applied_at": appliedAt,
			"last_error": nil,
			"updated_at": appliedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkCancelled(ctx context.Context, db *gorm.DB, id snowflake.ID, cancelledAt time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.PriceChange{}).
		Where("id = ? AND status = ?", id, domain.StatusScheduled).
		Updates(map[string]any{
			"status":       domain.StatusCancelled,
			"cancelled_at": cancelledAt,
			"updated_at":   cancelledAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.PriceChange{}).
		Where("id = ? AND status = ?", id, domain.StatusScheduled).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
			"updated_at": at,
		}).Error
}
