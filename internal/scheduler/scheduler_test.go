package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	pricechangedomain "github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTicker struct {
	pricechangedomain.Service

	mu      sync.Mutex
	calls   []time.Time
	block   chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeTicker) Tick(ctx context.Context, now time.Time) (pricechangedomain.TickResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, now)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	return pricechangedomain.TickResult{RunID: "run", Now: now, Due: 1, Applied: 1}, f.err
}

func newScheduler(t *testing.T, ticker *fakeTicker, clk clock.Clock, spec string) *Scheduler {
	t.Helper()
	var cfg config.Config
	cfg.Scheduler.Spec = spec
	s, err := New(Params{Log: zap.NewNop(), Config: cfg, Clock: clk, PriceChanges: ticker})
	require.NoError(t, err)
	return s
}

func TestRunOnceUsesClock(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ticker := &fakeTicker{}
	s := newScheduler(t, ticker, clock.NewFake(at), "@every 1m")

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []time.Time{at}, ticker.calls)

	preview := at.Add(48 * time.Hour)
	_, err = s.RunOnce(clock.WithSimulatedTime(context.Background(), preview))
	require.NoError(t, err)
	assert.Equal(t, preview, ticker.calls[1])
}

func TestRunOnceRejectsOverlap(t *testing.T) {
	ticker := &fakeTicker{block: make(chan struct{}), started: make(chan struct{})}
	s := newScheduler(t, ticker, clock.NewFake(time.Now().UTC()), "@every 1m")

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-ticker.started

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)

	close(ticker.block)
	require.NoError(t, <-done)
}

func TestRunOncePropagatesFailure(t *testing.T) {
	boom := errors.New("storage down")
	s := newScheduler(t, &fakeTicker{err: boom}, clock.NewFake(time.Now().UTC()), "@every 1m")

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewRejectsBadSpec(t *testing.T) {
	var cfg config.Config
	cfg.Scheduler.Spec = "every now and then"
	_, err := New(Params{Log: zap.NewNop(), Config: cfg, Clock: clock.SystemClock{}, PriceChanges: &fakeTicker{}})
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	ticker := &fakeTicker{}
	s := newScheduler(t, ticker, clock.SystemClock{}, "@every 1h")
	s.Start()
	s.Stop()
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
