package domain

import (
	"context"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/apperr"
)

var (
	ErrInvalidID = apperr.Wrap(apperr.ErrValidation, "invalid_institution_id")
	ErrNotFound  = apperr.Wrap(apperr.ErrNotFound, "institution_not_found")
	ErrInactive  = apperr.Wrap(apperr.ErrValidation, "institution_inactive")
)

// Institution is the slice of the externally managed directory record this
// service needs. The directory owns the table; this service only reads it.
type Institution struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string    `gorm:"type:text;not null" json:"name"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	BillingEmail string    `gorm:"type:text" json:"billing_email,omitempty"`
	Address      string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (Institution) TableName() string { return "institutions" }

// Directory is the read-only lookup used to validate institutions before
// overrides, scheduled changes or purchases are written.
type Directory interface {
	Get(ctx context.Context, id string) (*Institution, error)
}
