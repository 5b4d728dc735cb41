package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/railzwaylabs/interviewledger/internal/institution/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"gorm.io/gorm"
)

type directory struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) domain.Directory {
	return &directory{db: conn}
}

func (d *directory) Get(ctx context.Context, id string) (*domain.Institution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrInvalidID
	}

	var item domain.Institution
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, db.Classify(err)
	}
	return &item, nil
}

// RequireActive loads an institution and fails unless it is active.
func RequireActive(ctx context.Context, dir domain.Directory, id string) (*domain.Institution, error) {
	inst, err := dir.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inst.IsActive {
		return nil, domain.ErrInactive
	}
	return inst, nil
}
