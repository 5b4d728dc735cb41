package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	pricechangedomain "github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	"github.com/robfig/cron"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobName = "price_change_tick"

var ErrTickInProgress = errors.New("tick_in_progress")

type Params struct {
	fx.In

	Log          *zap.Logger
	Config       config.Config
	Clock        clock.Clock
	PriceChanges pricechangedomain.Service
}

// Scheduler triggers price change ticks on a cron schedule. It holds no
// scheduling state of its own; every tick reads the due set from storage.
type Scheduler struct {
	log          *zap.Logger
	clock        clock.Clock
	priceChanges pricechangedomain.Service
	spec         string

	cron    *cron.Cron
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(p Params) (*Scheduler, error) {
	s := &Scheduler{
		log:          p.Log.Named("scheduler"),
		clock:        p.Clock,
		priceChanges: p.PriceChanges,
		spec:         p.Config.Scheduler.Spec,
		cron:         cron.NewWithLocation(time.UTC),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := s.cron.AddFunc(s.spec, s.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", s.spec, err)
	}
	return s, nil
}

// RunOnce performs a single tick at the clock's current instant. Overlapping
// calls on the same scheduler return ErrTickInProgress.
func (s *Scheduler) RunOnce(ctx context.Context) (pricechangedomain.TickResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return pricechangedomain.TickResult{}, ErrTickInProgress
	}
	defer s.running.Store(false)

	now := s.clock.Now(ctx)
	s.logJobStart(now)
	result, err := s.priceChanges.Tick(ctx, now)
	if err != nil {
		s.log.Error("scheduler job failed",
			zap.String("job", jobName),
			zap.String("run_id", result.RunID),
			zap.Error(err),
		)
		return result, err
	}
	s.logJobFinish(result)
	return result, nil
}

func (s *Scheduler) runScheduled() {
	if _, err := s.RunOnce(s.ctx); errors.Is(err, ErrTickInProgress) {
		s.log.Warn("previous tick still running, skipping", zap.String("job", jobName))
	}
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", zap.String("job", jobName), zap.String("spec", s.spec))
	s.cron.Start()
}

// Stop halts the cron loop and cancels an in-flight tick. Records already
// applied stay applied; the rest stay scheduled for the next run.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.cancel()
	s.log.Info("scheduler stopped", zap.String("job", jobName))
}

func (s *Scheduler) logJobStart(now time.Time) {
	s.log.Debug("scheduler job started", zap.String("job", jobName), zap.Time("now", now))
}

func (s *Scheduler) logJobFinish(r pricechangedomain.TickResult) {
	fields := []zap.Field{
		zap.String("job", jobName),
		zap.String("run_id", r.RunID),
		zap.Int("due", r.Due),
		zap.Int("applied", r.Applied),
		zap.Int("superseded", r.Superseded),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
	}
	if r.Due == 0 {
		s.log.Debug("scheduler job finished", fields...)
		return
	}
	s.log.Info("scheduler job finished", fields...)
}
