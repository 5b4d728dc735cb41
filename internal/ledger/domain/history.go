package domain

import (
	"time"

	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/shopspring/decimal"
)

// BillingHistoryItem is the display projection of a purchase.
type BillingHistoryItem struct {
	PurchaseID       string          `json:"purchase_id"`
	InstitutionID    string          `json:"institution_id"`
	Quantity         int64           `json:"quantity"`
	PricePerSession  decimal.Decimal `json:"price_per_session"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Status           PurchaseStatus  `json:"status"`
	PurchaseDate     time.Time       `json:"purchase_date"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Anomalous        bool            `json:"anomalous"`
	Warnings         []string        `json:"warnings,omitempty"`
}

type BillingHistory struct {
	InstitutionID string                    `json:"institution_id"`
	Balance       Balance                   `json:"balance"`
	Items         []BillingHistoryItem      `json:"items"`
	Pricing       *pricingdomain.Resolution `json:"pricing,omitempty"`
	Warnings      []string                  `json:"warnings,omitempty"`
}

// ProjectPurchase builds the history item for p and lists anything about the
// stored row that does not add up. It never fails.
func ProjectPurchase(p Purchase) BillingHistoryItem {
	item := BillingHistoryItem{
		PurchaseID:      p.ID,
		InstitutionID:   p.InstitutionID,
		Quantity:        p.Quantity,
		PricePerSession: p.PricePerSession,
		TotalPrice:      p.TotalPrice,
		Status:          p.Status,
		PurchaseDate:    p.PurchaseDate,
		CompletedAt:     p.CompletedAt,
		Anomalous:       p.Anomaly != nil,
	}
	if p.PaymentReference != nil {
		item.PaymentReference = *p.PaymentReference
	}

	if p.Anomaly != nil {
		item.Warnings = append(item.Warnings, *p.Anomaly)
	}
	if p.Quantity <= 0 && p.Anomaly == nil {
		item.Warnings = append(item.Warnings, ReasonInvalidQuantity)
		item.Quantity = 0
	}
	if p.PricePerSession.IsNegative() {
		item.Warnings = append(item.Warnings, ReasonInvalidPrice)
		item.PricePerSession = decimal.Zero
	}
	if !p.TotalPriceAuthoritative && !p.TotalPrice.Equal(ComputeTotal(item.Quantity, item.PricePerSession)) {
		item.Warnings = append(item.Warnings, ReasonTotalMismatch)
	}
	if !p.Status.Valid() {
		item.Warnings = append(item.Warnings, ReasonInvalidStatus)
	}
	if len(item.Warnings) > 0 {
		item.Anomalous = true
	}
	return item
}
