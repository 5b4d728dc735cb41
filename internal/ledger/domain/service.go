package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CreatePurchaseRequest struct {
	InstitutionID    string          `json:"institution_id" validate:"required,notblank"`
	Quantity         int64           `json:"quantity" validate:"gt=0"`
	PricePerSession  decimal.Decimal `json:"price_per_session" validate:"gte=0"`
	PaymentReference string          `json:"payment_reference" validate:"omitempty,max=128"`
	PurchaseDate     *time.Time      `json:"purchase_date"`
}

type ConsumeRequest struct {
	InstitutionID string `json:"institution_id" validate:"required,notblank"`
	Count         int64  `json:"count" validate:"gt=0"`
}

// ImportResult reports how an upstream record was ingested.
type ImportResult struct {
	Purchase  *Purchase `json:"purchase"`
	Verdict   Verdict   `json:"verdict"`
	Reasons   []string  `json:"reasons,omitempty"`
	Duplicate bool      `json:"duplicate"`
}

type Service interface {
	CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*Purchase, error)
	CompletePurchase(ctx context.Context, purchaseID string) (*Purchase, error)
	CancelPurchase(ctx context.Context, purchaseID string) (*Purchase, error)
	ImportPurchase(ctx context.Context, raw []byte) (*ImportResult, error)
	GetPurchase(ctx context.Context, purchaseID string) (*Purchase, error)

	ConsumeSession(ctx context.Context, req ConsumeRequest) (*Balance, error)
	GetBalance(ctx context.Context, institutionID string) (*Balance, error)

	ListBillingHistory(ctx context.Context, institutionID string) (*BillingHistory, error)
	GetBillingItem(ctx context.Context, purchaseID string) (*BillingHistoryItem, error)
}
