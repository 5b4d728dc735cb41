package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/apperr"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/events"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	institutionrepo "github.com/railzwaylabs/interviewledger/internal/institution/repository"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Config       config.Config
	Guardrails   *config.PricingHolder
	Clock        clock.Clock
	Repo         domain.Repository
	Institutions institutiondomain.Directory

	AuditSvc  auditdomain.Service    `optional:"true"`
	Publisher events.Publisher       `optional:"true"`
	Metrics   *observability.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	guardrails   *config.PricingHolder
	clock        clock.Clock
	repo         domain.Repository
	institutions institutiondomain.Directory
	auditSvc     auditdomain.Service
	publisher    events.Publisher
	metrics      *observability.Metrics
	maxRetries   int
}

func New(p Params) domain.Service {
	svc := &Service{
		db:           p.DB,
		log:          p.Log.Named("pricing.service"),
		guardrails:   p.Guardrails,
		clock:        p.Clock,
		repo:         p.Repo,
		institutions: p.Institutions,
		auditSvc:     p.AuditSvc,
		publisher:    p.Publisher,
		metrics:      p.Metrics,
		maxRetries:   p.Config.Storage.MaxCASRetries,
	}
	if svc.guardrails == nil {
		svc.guardrails = config.NewStaticPricingHolder(p.Config.Pricing)
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

func (s *Service) GetGlobal(ctx context.Context) (*domain.GlobalConfig, error) {
	cfg, err := s.repo.GetGlobal(ctx, s.db)
	if err != nil {
		return nil, db.Classify(err)
	}
	if cfg == nil {
		return &domain.GlobalConfig{ID: domain.GlobalConfigID}, nil
	}
	return cfg, nil
}

func (s *Service) GetOverride(ctx context.Context, institutionID string) (*domain.Override, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, domain.ErrInstitutionRequired
	}
	o, err := s.repo.GetOverride(ctx, s.db, institutionID)
	if err != nil {
		return nil, db.Classify(err)
	}
	if o == nil {
		return nil, domain.ErrOverrideNotFound
	}
	return o, nil
}

func (s *Service) ListOverrides(ctx context.Context) ([]domain.Override, error) {
	items, err := s.repo.ListOverrides(ctx, s.db)
	if err != nil {
		return nil, db.Classify(err)
	}
	return items, nil
}

func (s *Service) EnableOverride(ctx context.Context, institutionID string) (*domain.Override, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, domain.ErrInstitutionRequired
	}
	if _, err := institutionrepo.RequireActive(ctx, s.institutions, institutionID); err != nil {
		return nil, err
	}
	return s.toggleOverride(ctx, institutionID, true)
}

func (s *Service) DisableOverride(ctx context.Context, institutionID string) (*domain.Override, error) {
	institutionID = strings.TrimSpace(institutionID)
	if institutionID == "" {
		return nil, domain.ErrInstitutionRequired
	}
	return s.toggleOverride(ctx, institutionID, false)
}

func (s *Service) toggleOverride(ctx context.Context, institutionID string, enabled bool) (*domain.Override, error) {
	var out *domain.Override
	changed := false

	err := s.retryConflicts(ctx, "override_toggle", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now(ctx)
			o, err := s.repo.GetOverride(ctx, tx, institutionID)
			if err != nil {
				return db.Classify(err)
			}

			if o == nil {
				if !enabled {
					return domain.ErrOverrideNotFound
				}
				created, err := s.seedOverride(ctx, tx, institutionID)
				if err != nil {
					return err
				}
				out, changed = created, true
				return nil
			}

			if o.Enabled == enabled {
				out, changed = o, false
				return nil
			}

			expected := o.Version
			o.Enabled = enabled
			o.UpdatedAt = now
			ok, err := s.repo.UpdateOverride(ctx, tx, o, expected)
			if err != nil {
				return db.Classify(err)
			}
			if !ok {
				return apperr.ErrConflict
			}
			out, changed = o, true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		action := "pricing.override.disabled"
		if enabled {
			action = "pricing.override.enabled"
		}
		s.audit(ctx, &institutionID, action, "pricing_override", institutionID, map[string]any{
			"enabled": enabled,
			"version": out.Version,
		})
		s.publish(ctx, events.Event{
			Type:          events.TypeOverrideToggled,
			InstitutionID: institutionID,
			OccurredAt:    s.clock.Now(ctx),
			Data:          map[string]any{"enabled": enabled},
		})
		s.log.Info("pricing override toggled",
			zap.String("institution_id", institutionID),
			zap.Bool("enabled", enabled),
		)
	}
	return out, nil
}

// seedOverride creates an enabled override carrying the current global rates.
func (s *Service) seedOverride(ctx context.Context, tx *gorm.DB, institutionID string) (*domain.Override, error) {
	global, err := s.repo.GetGlobal(ctx, tx)
	if err != nil {
		return nil, db.Classify(err)
	}
	var rates domain.Rates
	if global != nil {
		rates = global.Rates
	}

	now := s.clock.Now(ctx)
	o := &domain.Override{
		InstitutionID: institutionID,
		Rates:         rates,
		Enabled:       true,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertOverride(ctx, tx, o); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrConflict
		}
		return nil, db.Classify(err)
	}
	return o, nil
}

func (s *Service) CurrentValue(ctx context.Context, conn *gorm.DB, target domain.Target, field domain.Field) (decimal.Decimal, error) {
	if err := target.Validate(); err != nil {
		return decimal.Zero, err
	}
	if !field.Valid() {
		return decimal.Zero, domain.ErrInvalidField
	}

	if target.Scope == domain.ScopeInstitution {
		o, err := s.repo.GetOverride(ctx, conn, target.InstitutionID)
		if err != nil {
			return decimal.Zero, db.Classify(err)
		}
		if o != nil {
			return o.Rates.Get(field), nil
		}
	}

	global, err := s.repo.GetGlobal(ctx, conn)
	if err != nil {
		return decimal.Zero, db.Classify(err)
	}
	if global == nil {
		return decimal.Zero, nil
	}
	return global.Rates.Get(field), nil
}

func (s *Service) ValidateValue(field domain.Field, value decimal.Decimal) error {
	return domain.ValidateValue(field, value, s.guardrails.MarkupCeiling())
}

func (s *Service) WriteField(ctx context.Context, conn *gorm.DB, target domain.Target, field domain.Field, value decimal.Decimal) (decimal.Decimal, error) {
	if err := target.Validate(); err != nil {
		return decimal.Zero, err
	}
	if err := s.ValidateValue(field, value); err != nil {
		return decimal.Zero, err
	}

	now := s.clock.Now(ctx)
	if target.Scope == domain.ScopeGlobal {
		return s.writeGlobal(ctx, conn, field, value, now)
	}
	return s.writeOverride(ctx, conn, target.InstitutionID, field, value, now)
}

func (s *Service) writeGlobal(ctx context.Context, conn *gorm.DB, field domain.Field, value decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	cfg, err := s.repo.GetGlobal(ctx, conn)
	if err != nil {
		return decimal.Zero, db.Classify(err)
	}

	if cfg == nil {
		cfg = &domain.GlobalConfig{
			Rates:     domain.Rates{}.With(field, value),
			Version:   1,
			UpdatedAt: now,
		}
		if err := s.repo.InsertGlobal(ctx, conn, cfg); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return decimal.Zero, apperr.ErrConflict
			}
			return decimal.Zero, db.Classify(err)
		}
		return decimal.Zero, nil
	}

	previous := cfg.Rates.Get(field)
	expected := cfg.Version
	cfg.Rates = cfg.Rates.With(field, value)
	cfg.UpdatedAt = now
	ok, err := s.repo.UpdateGlobal(ctx, conn, cfg, expected)
	if err != nil {
		return decimal.Zero, db.Classify(err)
	}
	if !ok {
		return decimal.Zero, apperr.ErrConflict
	}
	return previous, nil
}

func (s *Service) writeOverride(ctx context.Context, conn *gorm.DB, institutionID string, field domain.Field, value decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	o, err := s.repo.GetOverride(ctx, conn, institutionID)
	if err != nil {
		return decimal.Zero, db.Classify(err)
	}

	if o == nil {
		seeded, err := s.seedOverride(ctx, conn, institutionID)
		if err != nil {
			return decimal.Zero, err
		}
		o = seeded
	}

	previous := o.Rates.Get(field)
	expected := o.Version
	o.Rates = o.Rates.With(field, value)
	o.UpdatedAt = now
	ok, err := s.repo.UpdateOverride(ctx, conn, o, expected)
	if err != nil {
		return decimal.Zero, db.Classify(err)
	}
	if !ok {
		return decimal.Zero, apperr.ErrConflict
	}
	return previous, nil
}

func (s *Service) ApplyField(ctx context.Context, target domain.Target, field domain.Field, value decimal.Decimal) (decimal.Decimal, error) {
	var previous decimal.Decimal
	err := s.retryConflicts(ctx, "pricing_write", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			prev, err := s.WriteField(ctx, tx, target, field, value)
			if err != nil {
				return err
			}
			previous = prev
			return nil
		})
	})
	if err != nil {
		return decimal.Zero, err
	}

	var institutionID *string
	targetType := "pricing_config"
	targetID := string(domain.ScopeGlobal)
	if target.Scope == domain.ScopeInstitution {
		id := target.InstitutionID
		institutionID = &id
		targetType = "pricing_override"
		targetID = id
	}
	s.audit(ctx, institutionID, "pricing.field.updated", targetType, targetID, map[string]any{
		"field":          string(field),
		"previous_value": previous.String(),
		"new_value":      value.String(),
	})
	s.publish(ctx, events.Event{
		Type:          events.TypePricingUpdated,
		InstitutionID: target.InstitutionID,
		OccurredAt:    s.clock.Now(ctx),
		Data: map[string]any{
			"scope":          string(target.Scope),
			"field":          string(field),
			"previous_value": previous.String(),
			"new_value":      value.String(),
		},
	})
	return previous, nil
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
		s.log.Debug("optimistic write conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
		)
	}
	return err
}

func (s *Service) audit(ctx context.Context, institutionID *string, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	id := targetID
	if err := s.auditSvc.AuditLog(ctx, institutionID, action, targetType, &id, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", zap.String("type", evt.Type), zap.Error(err))
	}
}
