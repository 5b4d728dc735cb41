package repository

import (
	"context"
	"errors"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repo) FindPurchase(ctx context.Context, db *gorm.DB, id string) (*domain.Purchase, error) {
	return r.findOne(ctx, db.Where("id = ?", id))
}

func (r *repo) FindPurchaseByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Purchase, error) {
	return r.findOne(ctx, db.Where("payment_reference = ?", reference))
}

func (r *repo) findOne(ctx context.Context, query *gorm.DB) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := query.WithContext(ctx).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repo) ListPurchases(ctx context.Context, db *gorm.DB, institutionID string, limit int) ([]domain.Purchase, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var items []domain.Purchase
	err := db.WithContext(ctx).
		Where("institution_id = ?", institutionID).
		Order("purchase_date DESC").
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repo) TransitionPurchase(ctx context.Context, db *gorm.DB, id string, from, to domain.PurchaseStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case domain.PurchaseStatusCompleted:
		updates["completed_at"] = at
	case domain.PurchaseStatusCancelled:
		updates["cancelled_at"] = at
	}

	res := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) GetPool(ctx context.Context, db *gorm.DB, institutionID string) (*domain.SessionPool, error) {
	var pool domain.SessionPool
	err := db.WithContext(ctx).Where("institution_id = ?", institutionID).Take(&pool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}

func (r *repo) InsertPool(ctx context.Context, db *gorm.DB, pool *domain.SessionPool) error {
	return db.WithContext(ctx).Create(pool).Error
}

func (r *repo) UpdatePool(ctx context.Context, db *gorm.DB, pool *domain.SessionPool, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.SessionPool{}).
		Where("institution_id = ? AND version = ?", pool.InstitutionID, expectedVersion).
		Updates(map[string]any{
			"total_sessions": pool.TotalSessions,
			"used_sessions":  pool.UsedSessions,
			"version":        expectedVersion + 1,
			"updated_at":     pool.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	pool.Version = expectedVersion + 1
	return true, nil
}
