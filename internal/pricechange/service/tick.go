package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/interviewledger/internal/events"
	"github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeApplied
	outcomeSuperseded
	outcomeFailed
)

func (s *Service) Tick(ctx context.Context, now time.Time) (domain.TickResult, error) {
	now = now.UTC()
	result := domain.TickResult{RunID: ulid.Make().String(), Now: now}

	timer := prometheus.NewTimer(s.metrics.TickDuration)
	defer timer.ObserveDuration()

	log := s.log.With(zap.String("run_id", result.RunID), zap.Time("now", now))
	var cursor *domain.Cursor

	// Pages advance by cursor so rows left scheduled after a failed apply
	// never hide later-due changes.
	for {
		page, err := db.RetryUnavailable(ctx, s.readPolicy, func() ([]domain.PriceChange, error) {
			return s.repo.ListDue(ctx, s.db, now, cursor, s.batchSize)
		})
		if err != nil {
			return result, err
		}
		if len(page) == 0 {
			break
		}
		cursor = domain.CursorOf(&page[len(page)-1])

		due := make([]*domain.PriceChange, 0, len(page))
		for i := range page {
			if page[i].IsDue(now) {
				due = append(due, &page[i])
			}
		}
		result.Due += len(due)

		if err := s.applyBatch(ctx, due, now, log, &result); err != nil {
			log.Warn("tick interrupted", zap.Error(err), zap.Int("applied", result.Applied))
			return result, err
		}

		if s.batchSize <= 0 || len(page) < s.batchSize {
			break
		}
	}

	if result.Due > 0 {
		log.Info("tick completed",
			zap.Int("due", result.Due),
			zap.Int("applied", result.Applied),
			zap.Int("superseded", result.Superseded),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// applyBatch applies due changes in ordering-key order. Changes sharing a
// (scope, field) run sequentially on one worker; distinct pairs run in
// parallel up to the configured worker count.
func (s *Service) applyBatch(ctx context.Context, due []*domain.PriceChange, now time.Time, log *zap.Logger, result *domain.TickResult) error {
	sort.SliceStable(due, func(i, j int) bool { return due[i].Before(due[j]) })

	groups := make(map[string][]*domain.PriceChange)
	var order []string
	for _, change := range due {
		key := change.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], change)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, key := range order {
		changes := groups[key]
		g.Go(func() error {
			for _, change := range changes {
				if err := ctx.Err(); err != nil {
					return err
				}
				out := s.applyChange(ctx, change, now, log)

				mu.Lock()
				switch out {
				case outcomeApplied:
					result.Applied++
				case outcomeSuperseded:
					result.Superseded++
				case outcomeFailed:
					result.Failed++
				default:
					result.Skipped++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) applyChange(ctx context.Context, change *domain.PriceChange, now time.Time, log *zap.Logger) outcome {
	var (
		out outcome
		err error
	)
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		out, err = s.applyOnce(ctx, change, now)
		if !isConflict(err) {
			break
		}
		s.metrics.CASConflicts.WithLabelValues("price_change_apply").Inc()
	}

	scope, field := string(change.Scope), string(change.Field)
	if err != nil {
		s.metrics.PriceChangesFailed.WithLabelValues(scope, field).Inc()
		log.Error("failed to apply price change",
			zap.String("price_change_id", change.ID.String()),
			zap.String("target", change.Target().Key()),
			zap.String("field", field),
			zap.Error(err),
		)
		if ctx.Err() == nil {
			if rerr := s.repo.RecordFailure(ctx, s.db, change.ID, err.Error(), now); rerr != nil {
				log.Warn("failed to record price change failure", zap.Error(rerr))
			}
		}
		return outcomeFailed
	}

	switch out {
	case outcomeApplied:
		s.metrics.PriceChangesApplied.WithLabelValues(scope, field).Inc()
		change.Status = domain.StatusApplied
		change.AppliedAt = &now
		s.audit(ctx, change, "pricechange.applied", map[string]any{
			"field":          field,
			"new_value":      change.NewValue.String(),
			"effective_date": change.EffectiveDate.Format(time.RFC3339),
		})
		s.publish(ctx, events.TypePriceChangeApplied, change, now)
	case outcomeSuperseded:
		s.metrics.PriceChangesSuperseded.WithLabelValues(scope, field).Inc()
		change.Status = domain.StatusApplied
		change.Superseded = true
		change.AppliedAt = &now
		s.audit(ctx, change, "pricechange.superseded", map[string]any{
			"field":          field,
			"new_value":      change.NewValue.String(),
			"effective_date": change.EffectiveDate.Format(time.RFC3339),
		})
		log.Info("price change superseded by a later-dated change",
			zap.String("price_change_id", change.ID.String()),
		)
	}
	return out
}

// applyOnce claims the change and writes its value in one transaction. The
// claim only succeeds while the row is scheduled, so a change is written at
// most once no matter how many ticks race for it.
func (s *Service) applyOnce(ctx context.Context, change *domain.PriceChange, now time.Time) (outcome, error) {
	out := outcomeSkipped
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		latest, err := s.repo.LatestApplied(ctx, tx, change)
		if err != nil {
			return db.Classify(err)
		}
		superseded := latest != nil && change.Before(latest)

		claimed, err := s.repo.MarkApplied(ctx, tx, change.ID, now, superseded)
		if err != nil {
			return db.Classify(err)
		}
		if !claimed {
			out = outcomeSkipped
			return nil
		}
		if superseded {
			out = outcomeSuperseded
			return nil
		}

		if _, err := s.pricing.WriteField(ctx, tx, change.Target(), change.Field, change.NewValue); err != nil {
			return err
		}
		out = outcomeApplied
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	return out, nil
}
