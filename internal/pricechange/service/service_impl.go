package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/events"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	institutionrepo "github.com/railzwaylabs/interviewledger/internal/institution/repository"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	"github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
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
	GenID        *snowflake.Node
	Repo         domain.Repository
	Pricing      pricingdomain.Service
	Institutions institutiondomain.Directory

	AuditSvc  auditdomain.Service    `optional:"true"`
	Publisher events.Publisher       `optional:"true"`
	Metrics   *observability.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	genID        *snowflake.Node
	repo         domain.Repository
	pricing      pricingdomain.Service
	institutions institutiondomain.Directory
	auditSvc     auditdomain.Service
	publisher    events.Publisher
	metrics      *observability.Metrics

	workers    int
	batchSize  int
	maxRetries int
	readPolicy db.RetryPolicy
}

func New(p Params) domain.Service {
	svc := &Service{
		db:           p.DB,
		log:          p.Log.Named("pricechange.service"),
		clock:        p.Clock,
		genID:        p.GenID,
		repo:         p.Repo,
		pricing:      p.Pricing,
		institutions: p.Institutions,
		auditSvc:     p.AuditSvc,
		publisher:    p.Publisher,
		metrics:      p.Metrics,
		workers:      p.Config.Scheduler.Workers,
		batchSize:    p.Config.Scheduler.BatchSize,
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
	if svc.workers < 1 {
		svc.workers = 1
	}
	if svc.maxRetries < 1 {
		svc.maxRetries = 1
	}
	return svc
}

func (s *Service) Schedule(ctx context.Context, req domain.ScheduleRequest) (*domain.PriceChange, error) {
	target, err := s.target(req.Scope, req.InstitutionID)
	if err != nil {
		return nil, err
	}
	if err := s.pricing.ValidateValue(req.Field, req.NewValue); err != nil {
		return nil, err
	}
	if target.Scope == pricingdomain.ScopeInstitution {
		if _, err := institutionrepo.RequireActive(ctx, s.institutions, target.InstitutionID); err != nil {
			return nil, err
		}
	}

	if req.EffectiveDate == nil {
		previous, err := s.pricing.ApplyField(ctx, target, req.Field, req.NewValue)
		if err != nil {
			return nil, err
		}
		s.log.Info("price change applied immediately",
			zap.String("target", target.Key()),
			zap.String("field", string(req.Field)),
			zap.String("previous_value", previous.String()),
			zap.String("new_value", req.NewValue.String()),
		)
		return nil, nil
	}

	now := s.clock.Now(ctx)
	effective := req.EffectiveDate.UTC()
	if !effective.After(now) {
		return nil, domain.ErrEffectiveDateNotFuture
	}

	previous, err := s.pricing.CurrentValue(ctx, s.db, target, req.Field)
	if err != nil {
		return nil, err
	}

	change := &domain.PriceChange{
		ID:            s.genID.Generate(),
		Scope:         target.Scope,
		Field:         req.Field,
		PreviousValue: previous,
		NewValue:      req.NewValue,
		EffectiveDate: effective,
		Status:        domain.StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if target.Scope == pricingdomain.ScopeInstitution {
		id := target.InstitutionID
		change.InstitutionID = &id
	}
	if actor := auditdomain.ActorFromContext(ctx); actor.ID != "" {
		createdBy := actor.ID
		change.CreatedBy = &createdBy
	}

	if err := s.repo.Insert(ctx, s.db, change); err != nil {
		return nil, db.Classify(err)
	}

	s.audit(ctx, change, "pricechange.scheduled", map[string]any{
		"field":          string(change.Field),
		"previous_value": change.PreviousValue.String(),
		"new_value":      change.NewValue.String(),
		"effective_date": change.EffectiveDate.Format(time.RFC3339),
	})
	s.publish(ctx, events.TypePriceChangeScheduled, change, now)
	s.log.Info("price change scheduled",
		zap.String("price_change_id", change.ID.String()),
		zap.String("target", target.Key()),
		zap.String("field", string(change.Field)),
		zap.Time("effective_date", change.EffectiveDate),
	)
	return change, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*domain.PriceChange, error) {
	changeID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	change, err := s.repo.FindByID(ctx, s.db, changeID)
	if err != nil {
		return nil, db.Classify(err)
	}
	if change == nil {
		return nil, domain.ErrNotFound
	}
	if change.Status != domain.StatusScheduled {
		return nil, domain.ErrNotScheduled
	}

	now := s.clock.Now(ctx)
	ok, err := s.repo.MarkCancelled(ctx, s.db, changeID, now)
	if err != nil {
		return nil, db.Classify(err)
	}
	if !ok {
		// A tick claimed it between the read and the write.
		return nil, domain.ErrNotScheduled
	}

	change.Status = domain.StatusCancelled
	change.CancelledAt = &now
	change.UpdatedAt = now

	s.audit(ctx, change, "pricechange.cancelled", map[string]any{
		"field":     string(change.Field),
		"new_value": change.NewValue.String(),
	})
	s.publish(ctx, events.TypePriceChangeCancelled, change, now)
	s.log.Info("price change cancelled", zap.String("price_change_id", change.ID.String()))
	return change, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.PriceChange, error) {
	changeID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	change, err := db.RetryUnavailable(ctx, s.readPolicy, func() (*domain.PriceChange, error) {
		return s.repo.FindByID(ctx, s.db, changeID)
	})
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, domain.ErrNotFound
	}
	return change, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.PriceChange, error) {
	filter := domain.ListFilter{
		InstitutionID: strings.TrimSpace(req.InstitutionID),
		Limit:         req.Limit,
	}

	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.Status(status) {
		case domain.StatusScheduled, domain.StatusApplied, domain.StatusCancelled:
			filter.Status = domain.Status(status)
		default:
			return nil, domain.ErrInvalidStatus
		}
	}
	if scope := strings.TrimSpace(req.Scope); scope != "" {
		if !pricingdomain.Scope(scope).Valid() {
			return nil, pricingdomain.ErrInvalidScope
		}
		filter.Scope = pricingdomain.Scope(scope)
	}
	if field := strings.TrimSpace(req.Field); field != "" {
		if !pricingdomain.Field(field).Valid() {
			return nil, pricingdomain.ErrInvalidField
		}
		filter.Field = pricingdomain.Field(field)
	}

	return db.RetryUnavailable(ctx, s.readPolicy, func() ([]domain.PriceChange, error) {
		return s.repo.List(ctx, s.db, filter)
	})
}

func (s *Service) target(scope pricingdomain.Scope, institutionID string) (pricingdomain.Target, error) {
	var target pricingdomain.Target
	switch scope {
	case pricingdomain.ScopeGlobal:
		target = pricingdomain.GlobalTarget()
	case pricingdomain.ScopeInstitution:
		target = pricingdomain.InstitutionTarget(institutionID)
	default:
		return target, pricingdomain.ErrInvalidScope
	}
	return target, target.Validate()
}

func (s *Service) audit(ctx context.Context, change *domain.PriceChange, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	id := change.ID.String()
	if err := s.auditSvc.AuditLog(ctx, change.InstitutionID, action, "price_change", &id, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType string, change *domain.PriceChange, at time.Time) {
	evt := events.Event{
		Type:       eventType,
		SubjectID:  change.ID.String(),
		OccurredAt: at,
		Data: map[string]any{
			"scope":          string(change.Scope),
			"field":          string(change.Field),
			"new_value":      change.NewValue.String(),
			"effective_date": change.EffectiveDate.Format(time.RFC3339),
			"superseded":     change.Superseded,
		},
	}
	if change.InstitutionID != nil {
		evt.InstitutionID = *change.InstitutionID
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func isConflict(err error) bool {
	return errors.Is(err, apperr.ErrConflict)
}
