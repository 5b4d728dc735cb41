package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusCompleted, PurchaseStatusCancelled:
		return true
	default:
		return false
	}
}

type PurchaseSource string

const (
	PurchaseSourceManual PurchaseSource = "manual"
	PurchaseSourceImport PurchaseSource = "import"
)

// SessionPool is an institution's session balance. Available is derived and
// never stored.
type SessionPool struct {
	InstitutionID string    `gorm:"primaryKey;type:varchar(64)" json:"institution_id"`
	TotalSessions int64     `gorm:"not null;default:0" json:"total_sessions"`
	UsedSessions  int64     `gorm:"not null;default:0" json:"used_sessions"`
	Version       int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (SessionPool) TableName() string { return "session_pools" }

func (p SessionPool) Available() int64 {
	return p.TotalSessions - p.UsedSessions
}

// Check enforces 0 <= used <= total.
func (p SessionPool) Check() error {
	if p.TotalSessions < 0 || p.UsedSessions < 0 || p.UsedSessions > p.TotalSessions {
		return ErrPoolInvariant
	}
	return nil
}

// Purchase funds a session pool once completed. Completed and cancelled
// purchases are immutable.
type Purchase struct {
	ID              string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	InstitutionID   string          `gorm:"type:varchar(64);not null;index" json:"institution_id"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	PricePerSession decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"price_per_session"`
	TotalPrice      decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total_price"`

	// TotalPriceAuthoritative is set for records imported from an upstream
	// payment; their total wins over quantity x price.
	TotalPriceAuthoritative bool `gorm:"not null;default:false" json:"total_price_authoritative"`

	PaymentReference *string        `gorm:"type:varchar(128);uniqueIndex" json:"payment_reference,omitempty"`
	Source           PurchaseSource `gorm:"type:varchar(16);not null" json:"source"`
	Status           PurchaseStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Anomaly          *string        `gorm:"type:text" json:"anomaly,omitempty"`
	RawPayload       datatypes.JSON `json:"raw_payload,omitempty"`

	PurchaseDate time.Time  `gorm:"not null" json:"purchase_date"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (Purchase) TableName() string { return "session_purchases" }

// ComputeTotal is quantity x price per session.
func ComputeTotal(quantity int64, pricePerSession decimal.Decimal) decimal.Decimal {
	return pricePerSession.Mul(decimal.NewFromInt(quantity))
}

// Balance is the read view of a session pool.
type Balance struct {
	InstitutionID     string `json:"institution_id"`
	TotalSessions     int64  `json:"total_sessions"`
	UsedSessions      int64  `json:"used_sessions"`
	AvailableSessions int64  `json:"available_sessions"`
}

func BalanceOf(institutionID string, pool *SessionPool) Balance {
	if pool == nil {
		return Balance{InstitutionID: institutionID}
	}
	return Balance{
		InstitutionID:     institutionID,
		TotalSessions:     pool.TotalSessions,
		UsedSessions:      pool.UsedSessions,
		AvailableSessions: pool.Available(),
	}
}
