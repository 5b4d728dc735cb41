package service

import (
	"context"
	"strings"

	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"go.uber.org/zap"
)

const warningPricingUnavailable = "pricing_unavailable"

// ListBillingHistory projects every purchase of an institution. Rows that do
// not add up are returned with warnings instead of failing the read.
func (s *Service) ListBillingHistory(ctx context.Context, institutionID string) (*domain.BillingHistory, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, domain.ErrInvalidInstitution
	}

	purchases, err := db.RetryUnavailable(ctx, s.readPolicy, func() ([]domain.Purchase, error) {
		return s.repo.ListPurchases(ctx, s.db, institutionID, 0)
	})
	if err != nil {
		return nil, err
	}
	balance, err := s.GetBalance(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	history := &domain.BillingHistory{
		InstitutionID: institutionID,
		Balance:       *balance,
		Items:         make([]domain.BillingHistoryItem, 0, len(purchases)),
	}
	for _, p := range purchases {
		item := domain.ProjectPurchase(p)
		if item.Anomalous {
			history.Warnings = append(history.Warnings, p.ID+": "+strings.Join(item.Warnings, ","))
		}
		history.Items = append(history.Items, item)
	}

	if s.resolver != nil {
		res, err := s.resolver.Resolve(ctx, institutionID)
		if err != nil {
			s.log.Warn("billing history rendered without pricing",
				zap.String("institution_id", institutionID),
				zap.Error(err),
			)
			history.Warnings = append(history.Warnings, warningPricingUnavailable)
		} else {
			history.Pricing = res
		}
	}
	return history, nil
}

func (s *Service) GetBillingItem(ctx context.Context, purchaseID string) (*domain.BillingHistoryItem, error) {
	p, err := s.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	item := domain.ProjectPurchase(*p)
	return &item, nil
}
