package service

import (
	"context"
	"errors"
	"strings"

	"github.com/railzwaylabs/interviewledger/internal/apperr"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/railzwaylabs/interviewledger/internal/pricing")

type ResolverParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	Clock  clock.Clock
	Repo   domain.Repository

	Cache   domain.SnapshotCache   `optional:"true"`
	Metrics *observability.Metrics `optional:"true"`
}

// Resolver computes effective pricing on every call. The snapshot cache is
// written on successful reads and only read when storage is unavailable.
type Resolver struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	cache   domain.SnapshotCache
	metrics *observability.Metrics
	policy  db.RetryPolicy
}

func NewResolver(p ResolverParams) domain.Resolver {
	r := &Resolver{
		db:      p.DB,
		log:     p.Log.Named("pricing.resolver"),
		clock:   p.Clock,
		repo:    p.Repo,
		cache:   p.Cache,
		metrics: p.Metrics,
		policy: db.RetryPolicy{
			Attempts: p.Config.Storage.ReadRetries,
			Delay:    p.Config.Storage.ReadRetryDelay,
		},
	}
	if r.metrics == nil {
		r.metrics = observability.NewNopMetrics()
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, institutionID string) (*domain.Resolution, error) {
	institutionID = strings.TrimSpace(institutionID)

	ctx, span := tracer.Start(ctx, "pricing.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("institution_id", institutionID))

	snap, err := db.RetryUnavailable(ctx, r.policy, func() (domain.Snapshot, error) {
		return r.snapshot(ctx, institutionID)
	})
	if err == nil {
		if r.cache != nil {
			if cerr := r.cache.Save(ctx, institutionID, snap); cerr != nil {
				r.log.Warn("failed to store pricing snapshot",
					zap.String("institution_id", institutionID),
					zap.Error(cerr),
				)
			}
		}
		res := domain.Resolve(institutionID, snap)
		span.SetAttributes(attribute.String("source", string(res.Source)))
		return &res, nil
	}

	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stale, lerr := r.lastKnownGood(ctx, institutionID)
	if lerr != nil {
		span.RecordError(lerr)
		span.SetStatus(codes.Error, lerr.Error())
		r.log.Error("pricing unavailable and no snapshot to fall back to",
			zap.String("institution_id", institutionID),
			zap.Error(err),
		)
		return nil, lerr
	}

	r.metrics.StaleResolutions.Inc()
	span.SetAttributes(attribute.Bool("stale", true))
	r.log.Warn("serving stale pricing",
		zap.String("institution_id", institutionID),
		zap.Time("stale_since", *stale.StaleSince),
		zap.Error(err),
	)
	return stale, nil
}

func (r *Resolver) snapshot(ctx context.Context, institutionID string) (domain.Snapshot, error) {
	snap := domain.Snapshot{CapturedAt: r.clock.Now(ctx)}

	global, err := r.repo.GetGlobal(ctx, r.db)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if global != nil {
		snap.Global = global.Rates
	}

	if institutionID == "" {
		return snap, nil
	}

	o, err := r.repo.GetOverride(ctx, r.db, institutionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if o != nil {
		snap.Override = &domain.OverrideState{Rates: o.Rates, Enabled: o.Enabled}
	}
	return snap, nil
}

func (r *Resolver) lastKnownGood(ctx context.Context, institutionID string) (*domain.Resolution, error) {
	if r.cache == nil {
		return nil, domain.ErrNoSnapshot
	}
	snap, err := r.cache.Load(ctx, institutionID)
	if err != nil {
		r.log.Warn("failed to load pricing snapshot", zap.String("institution_id", institutionID), zap.Error(err))
		return nil, domain.ErrNoSnapshot
	}
	if snap == nil {
		return nil, domain.ErrNoSnapshot
	}

	res := domain.Resolve(institutionID, *snap)
	since := snap.CapturedAt
	res.Stale = true
	res.StaleSince = &since
	return &res, nil
}
