package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/events"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	institutionrepo "github.com/railzwaylabs/interviewledger/internal/institution/repository"
	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Config       config.Config
	Clock        clock.Clock
	Repo         domain.Repository
	Institutions institutiondomain.Directory

	Resolver  pricingdomain.Resolver `optional:"true"`
	AuditSvc  auditdomain.Service    `optional:"true"`
	Publisher events.Publisher       `optional:"true"`
	Metrics   *observability.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	repo         domain.Repository
	institutions institutiondomain.Directory
	resolver     pricingdomain.Resolver
	auditSvc     auditdomain.Service
	publisher    events.Publisher
	metrics      *observability.Metrics
	validate     *validator.Validate

	maxRetries int
	readPolicy db.RetryPolicy
}

func NewService(p Params) domain.Service {
	svc := &Service{
		db:           p.DB,
		log:          p.Log.Named("ledger.service"),
		clock:        p.Clock,
		repo:         p.Repo,
		institutions: p.Institutions,
		resolver:     p.Resolver,
		auditSvc:     p.AuditSvc,
		publisher:    p.Publisher,
		metrics:      p.Metrics,
		validate:     newValidator(),
		maxRetries:   p.Config.Storage.MaxCASRetries,
		readPolicy: db.RetryPolicy{
			Attempts: p.Config.Storage.ReadRetries,
			Delay:    p.Config.Storage.ReadRetryDelay,
		},
	}
	if svc.publisher == nil {
		svc.publisher = events.Nop{}
	}
	if svc.metrics == nil {
		svc.metrics = observability.NewNopMetrics()
	}
	if svc.maxRetries < 1 {
		svc.maxRetries = 1
	}
	return svc
}

func (s *Service) CreatePurchase(ctx context.Context, req domain.CreatePurchaseRequest) (*domain.Purchase, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	institutionID := strings.TrimSpace(req.InstitutionID)
	if _, err := institutionrepo.RequireActive(ctx, s.institutions, institutionID); err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	purchaseDate := now
	if req.PurchaseDate != nil && !req.PurchaseDate.IsZero() {
		purchaseDate = req.PurchaseDate.UTC()
	}

	p := &domain.Purchase{
		ID:              uuid.NewString(),
		InstitutionID:   institutionID,
		Quantity:        req.Quantity,
		PricePerSession: req.PricePerSession,
		TotalPrice:      domain.ComputeTotal(req.Quantity, req.PricePerSession),
		Source:          domain.PurchaseSourceManual,
		Status:          domain.PurchaseStatusPending,
		PurchaseDate:    purchaseDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ref := strings.TrimSpace(req.PaymentReference); ref != "" {
		p.PaymentReference = &ref
	}

	if err := s.repo.InsertPurchase(ctx, s.db, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.ErrValidation, "duplicate_payment_reference")
		}
		return nil, db.Classify(err)
	}

	s.audit(ctx, p, "ledger.purchase.created", map[string]any{
		"quantity":          p.Quantity,
		"price_per_session": p.PricePerSession.String(),
		"total_price":       p.TotalPrice.String(),
	})
	s.publish(ctx, events.TypePurchaseCreated, p, now)
	s.log.Info("session purchase created",
		zap.String("purchase_id", p.ID),
		zap.String("institution_id", p.InstitutionID),
		zap.Int64("quantity", p.Quantity),
	)
	return p, nil
}

func (s *Service) CompletePurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return nil, domain.ErrInvalidPurchaseID
	}

	var (
		completed *domain.Purchase
		pool      *domain.SessionPool
	)
	err := s.retryConflicts(ctx, "purchase_complete", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now(ctx)
			p, err := s.repo.FindPurchase(ctx, tx, purchaseID)
			if err != nil {
				return db.Classify(err)
			}
			if p == nil {
				return domain.ErrPurchaseNotFound
			}
			if p.Status != domain.PurchaseStatusPending {
				return domain.ErrPurchaseNotPending
			}
			if p.Anomaly != nil || p.Quantity <= 0 {
				return domain.ErrPurchaseAnomalous
			}

			ok, err := s.repo.TransitionPurchase(ctx, tx, p.ID, domain.PurchaseStatusPending, domain.PurchaseStatusCompleted, now)
			if err != nil {
				return db.Classify(err)
			}
			if !ok {
				return domain.ErrPurchaseNotPending
			}

			updated, err := s.addSessions(ctx, tx, p.InstitutionID, p.Quantity, now)
			if err != nil {
				return err
			}

			p.Status = domain.PurchaseStatusCompleted
			p.CompletedAt = &now
			p.UpdatedAt = now
			completed, pool = p, updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PurchasesCompleted.Inc()
	s.audit(ctx, completed, "ledger.purchase.completed", map[string]any{
		"quantity":       completed.Quantity,
		"total_sessions": pool.TotalSessions,
	})
	s.publish(ctx, events.TypePurchaseCompleted, completed, *completed.CompletedAt)
	s.log.Info("session purchase completed",
		zap.String("purchase_id", completed.ID),
		zap.String("institution_id", completed.InstitutionID),
		zap.Int64("quantity", completed.Quantity),
		zap.Int64("total_sessions", pool.TotalSessions),
	)
	return completed, nil
}

// addSessions credits quantity to the pool inside tx, creating the pool on
// first use. A lost race surfaces as apperr.ErrConflict.
func (s *Service) addSessions(ctx context.Context, tx *gorm.DB, institutionID string, quantity int64, now time.Time) (*domain.SessionPool, error) {
	pool, err := s.repo.GetPool(ctx, tx, institutionID)
	if err != nil {
		return nil, db.Classify(err)
	}

	if pool == nil {
		pool = &domain.SessionPool{
			InstitutionID: institutionID,
			TotalSessions: quantity,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := pool.Check(); err != nil {
			return nil, err
		}
		if err := s.repo.InsertPool(ctx, tx, pool); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, apperr.ErrConflict
			}
			return nil, db.Classify(err)
		}
		return pool, nil
	}

	expected := pool.Version
	pool.TotalSessions += quantity
	pool.UpdatedAt = now
	if err := pool.Check(); err != nil {
		return nil, err
	}
	ok, err := s.repo.UpdatePool(ctx, tx, pool, expected)
	if err != nil {
		return nil, db.Classify(err)
	}
	if !ok {
		return nil, apperr.ErrConflict
	}
	return pool, nil
}

func (s *Service) CancelPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return nil, domain.ErrInvalidPurchaseID
	}

	p, err := s.repo.FindPurchase(ctx, s.db, purchaseID)
	if err != nil {
		return nil, db.Classify(err)
	}
	if p == nil {
		return nil, domain.ErrPurchaseNotFound
	}
	if p.Status != domain.PurchaseStatusPending {
		return nil, domain.ErrPurchaseNotPending
	}

	now := s.clock.Now(ctx)
	ok, err := s.repo.TransitionPurchase(ctx, s.db, p.ID, domain.PurchaseStatusPending, domain.PurchaseStatusCancelled, now)
	if err != nil {
		return nil, db.Classify(err)
	}
	if !ok {
		return nil, domain.ErrPurchaseNotPending
	}

	p.Status = domain.PurchaseStatusCancelled
	p.CancelledAt = &now
	p.UpdatedAt = now

	s.audit(ctx, p, "ledger.purchase.cancelled", nil)
	s.publish(ctx, events.TypePurchaseCancelled, p, now)
	s.log.Info("session purchase cancelled",
		zap.String("purchase_id", p.ID),
		zap.String("institution_id", p.InstitutionID),
	)
	return p, nil
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return nil, domain.ErrInvalidPurchaseID
	}
	p, err := db.RetryUnavailable(ctx, s.readPolicy, func() (*domain.Purchase, error) {
		return s.repo.FindPurchase(ctx, s.db, purchaseID)
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrPurchaseNotFound
	}
	return p, nil
}

func (s *Service) ConsumeSession(ctx context.Context, req domain.ConsumeRequest) (*domain.Balance, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	institutionID := strings.TrimSpace(req.InstitutionID)

	var pool *domain.SessionPool
	err := s.retryConflicts(ctx, "session_consume", func() error {
		current, err := s.repo.GetPool(ctx, s.db, institutionID)
		if err != nil {
			return db.Classify(err)
		}
		if current == nil || req.Count > current.Available() {
			return domain.ErrInsufficientSessions
		}

		expected := current.Version
		current.UsedSessions += req.Count
		current.UpdatedAt = s.clock.Now(ctx)
		if err := current.Check(); err != nil {
			return err
		}
		ok, err := s.repo.UpdatePool(ctx, s.db, current, expected)
		if err != nil {
			return db.Classify(err)
		}
		if !ok {
			return apperr.ErrConflict
		}
		pool = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionsConsumed.Add(float64(req.Count))
	balance := domain.BalanceOf(institutionID, pool)
	s.auditPool(ctx, institutionID, "ledger.sessions.consumed", map[string]any{
		"count":     req.Count,
		"available": balance.AvailableSessions,
	})
	if err := s.publisher.Publish(ctx, events.Event{
		Type:          events.TypeSessionsConsumed,
		InstitutionID: institutionID,
		OccurredAt:    pool.UpdatedAt,
		Data:          map[string]any{"count": req.Count, "available": balance.AvailableSessions},
	}); err != nil {
		s.log.Warn("event publish failed", zap.String("type", events.TypeSessionsConsumed), zap.Error(err))
	}
	return &balance, nil
}

func (s *Service) GetBalance(ctx context.Context, institutionID string) (*domain.Balance, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, domain.ErrInvalidInstitution
	}
	pool, err := db.RetryUnavailable(ctx, s.readPolicy, func() (*domain.SessionPool, error) {
		return s.repo.GetPool(ctx, s.db, institutionID)
	})
	if err != nil {
		return nil, err
	}
	balance := domain.BalanceOf(institutionID, pool)
	return &balance, nil
}

// retryConflicts reruns fn while it reports apperr.ErrConflict, up to the
// configured bound.
func (s *Service) retryConflicts(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, apperr.ErrConflict) {
			return err
		}
		s.metrics.CASConflicts.WithLabelValues(operation).Inc()
		s.log.Debug("session pool conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
		)
	}
	return err
}

func (s *Service) audit(ctx context.Context, p *domain.Purchase, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	institutionID, id := p.InstitutionID, p.ID
	if err := s.auditSvc.AuditLog(ctx, &institutionID, action, "session_purchase", &id, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) auditPool(ctx context.Context, institutionID, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	id := institutionID
	if err := s.auditSvc.AuditLog(ctx, &id, action, "session_pool", &id, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, p *domain.Purchase, at time.Time) {
	evt := events.Event{
		Type:          eventType,
		InstitutionID: p.InstitutionID,
		SubjectID:     p.ID,
		OccurredAt:    at,
		Data: map[string]any{
			"quantity":    p.Quantity,
			"total_price": p.TotalPrice.String(),
			"status":      string(p.Status),
		},
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
