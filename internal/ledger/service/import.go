package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/railzwaylabs/interviewledger/internal/events"
	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxPurchaseIDLength = 64

var errDuplicateImport = errors.New("duplicate_import")

// ImportPurchase ingests one upstream payment record. Re-importing the same
// record (by id or payment reference) returns the stored purchase.
func (s *Service) ImportPurchase(ctx context.Context, raw []byte) (*domain.ImportResult, error) {
	now := s.clock.Now(ctx)
	sanitized, err := domain.Sanitize(raw, now)
	if err != nil {
		return nil, err
	}
	p := sanitized.Purchase

	if _, err := s.institutions.Get(ctx, p.InstitutionID); err != nil {
		return nil, err
	}

	if existing, err := s.findImported(ctx, s.db, &p); err != nil || existing != nil {
		if err != nil {
			return nil, err
		}
		return &domain.ImportResult{Purchase: existing, Verdict: verdictOf(existing), Duplicate: true}, nil
	}

	if p.ID == "" || len(p.ID) > maxPurchaseIDLength {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	switch p.Status {
	case domain.PurchaseStatusCompleted:
		completedAt := p.PurchaseDate
		p.CompletedAt = &completedAt
	case domain.PurchaseStatusCancelled:
		cancelledAt := p.PurchaseDate
		p.CancelledAt = &cancelledAt
	}

	err = s.retryConflicts(ctx, "purchase_import", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			record := p
			if err := s.repo.InsertPurchase(ctx, tx, &record); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errDuplicateImport
				}
				return db.Classify(err)
			}
			if record.Status == domain.PurchaseStatusCompleted && record.Quantity > 0 {
				if _, err := s.addSessions(ctx, tx, record.InstitutionID, record.Quantity, now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if errors.Is(err, errDuplicateImport) {
		// A concurrent import of the same record won the insert.
		existing, ferr := s.findImported(ctx, s.db, &p)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			return &domain.ImportResult{Purchase: existing, Verdict: verdictOf(existing), Duplicate: true}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	for _, reason := range sanitized.Reasons {
		s.metrics.PurchaseAnomalies.WithLabelValues(reason).Inc()
	}
	if sanitized.Verdict == domain.VerdictAnomalous {
		s.log.Warn("imported purchase flagged as anomalous",
			zap.String("purchase_id", p.ID),
			zap.String("institution_id", p.InstitutionID),
			zap.Strings("reasons", sanitized.Reasons),
		)
	} else {
		s.log.Info("purchase imported",
			zap.String("purchase_id", p.ID),
			zap.String("institution_id", p.InstitutionID),
			zap.String("status", string(p.Status)),
		)
	}
	if p.Status == domain.PurchaseStatusCompleted {
		s.metrics.PurchasesCompleted.Inc()
	}

	s.audit(ctx, &p, "ledger.purchase.imported", map[string]any{
		"verdict": string(sanitized.Verdict),
		"reasons": sanitized.Reasons,
		"status":  string(p.Status),
	})
	s.publish(ctx, events.TypePurchaseImported, &p, now)

	return &domain.ImportResult{
		Purchase: &p,
		Verdict:  sanitized.Verdict,
		Reasons:  sanitized.Reasons,
	}, nil
}

func (s *Service) findImported(ctx context.Context, conn *gorm.DB, p *domain.Purchase) (*domain.Purchase, error) {
	if p.ID != "" && len(p.ID) <= maxPurchaseIDLength {
		existing, err := s.repo.FindPurchase(ctx, conn, p.ID)
		if err != nil {
			return nil, db.Classify(err)
		}
		if existing != nil {
			return existing, nil
		}
	}
	if p.PaymentReference != nil {
		existing, err := s.repo.FindPurchaseByReference(ctx, conn, *p.PaymentReference)
		if err != nil {
			return nil, db.Classify(err)
		}
		return existing, nil
	}
	return nil, nil
}

func verdictOf(p *domain.Purchase) domain.Verdict {
	if p.Anomaly != nil {
		return domain.VerdictAnomalous
	}
	return domain.VerdictValid
}
