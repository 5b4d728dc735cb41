package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	auditservice "github.com/railzwaylabs/interviewledger/internal/audit/service"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/events"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	institutionrepo "github.com/railzwaylabs/interviewledger/internal/institution/repository"
	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"github.com/railzwaylabs/interviewledger/internal/ledger/repository"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db       *gorm.DB
	clock    *clock.Fake
	cfg      config.Config
	svc      *Service
	audit    auditdomain.Service
	metrics  *observability.Metrics
	recorder *events.Recorder
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Storage.MaxCASRetries = 5
	cfg.Storage.ReadRetries = 2
	cfg.Storage.ReadRetryDelay = time.Millisecond
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := db.OpenTest(t,
		&domain.Purchase{},
		&domain.SessionPool{},
		&institutiondomain.Institution{},
		&auditdomain.AuditLog{},
	)
	clk := clock.NewFake(now)
	cfg := testConfig()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	auditSvc := auditservice.NewService(auditservice.Params{DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk})
	metrics := observability.NewNopMetrics()
	recorder := &events.Recorder{}

	svc := NewService(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		Config:       cfg,
		Clock:        clk,
		Repo:         repository.Provide(),
		Institutions: institutionrepo.Provide(conn),
		AuditSvc:     auditSvc,
		Publisher:    recorder,
		Metrics:      metrics,
	}).(*Service)

	require.NoError(t, conn.Create(&institutiondomain.Institution{ID: "inst-1", Name: "Acme College", IsActive: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&institutiondomain.Institution{ID: "inst-off", Name: "Dormant", IsActive: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Model(&institutiondomain.Institution{}).Where("id = ?", "inst-off").Update("is_active", false).Error)

	return &fixture{db: conn, clock: clk, cfg: cfg, svc: svc, audit: auditSvc, metrics: metrics, recorder: recorder}
}

func (f *fixture) purchase(t *testing.T, quantity int64, price string) *domain.Purchase {
	t.Helper()
	p, err := f.svc.CreatePurchase(context.Background(), domain.CreatePurchaseRequest{
		InstitutionID:   "inst-1",
		Quantity:        quantity,
		PricePerSession: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) balance(t *testing.T) domain.Balance {
	t.Helper()
	b, err := f.svc.GetBalance(context.Background(), "inst-1")
	require.NoError(t, err)
	return *b
}

func TestCreatePurchaseIsPendingAndLeavesPoolAlone(t *testing.T) {
	f := newFixture(t)

	p := f.purchase(t, 12, "3.25")
	assert.Equal(t, domain.PurchaseStatusPending, p.Status)
	assert.True(t, p.TotalPrice.Equal(decimal.RequireFromString("39")))
	assert.Len(t, p.ID, 36)
	assert.Equal(t, domain.Balance{InstitutionID: "inst-1"}, f.balance(t))
}

func TestCreatePurchaseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreatePurchaseRequest
		want error
	}{
		{"zero quantity", domain.CreatePurchaseRequest{InstitutionID: "inst-1", Quantity: 0, PricePerSession: decimal.NewFromInt(1)}, domain.ErrInvalidQuantity},
		{"negative quantity", domain.CreatePurchaseRequest{InstitutionID: "inst-1", Quantity: -3, PricePerSession: decimal.NewFromInt(1)}, domain.ErrInvalidQuantity},
		{"negative price", domain.CreatePurchaseRequest{InstitutionID: "inst-1", Quantity: 1, PricePerSession: decimal.RequireFromString("-0.01")}, domain.ErrInvalidPrice},
		{"blank institution", domain.CreatePurchaseRequest{InstitutionID: "  ", Quantity: 1}, domain.ErrInvalidInstitution},
		{"inactive institution", domain.CreatePurchaseRequest{InstitutionID: "inst-off", Quantity: 1}, institutiondomain.ErrInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreatePurchase(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := f.svc.CreatePurchase(ctx, domain.CreatePurchaseRequest{InstitutionID: "nobody", Quantity: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	free, err := f.svc.CreatePurchase(ctx, domain.CreatePurchaseRequest{InstitutionID: "inst-1", Quantity: 5})
	require.NoError(t, err)
	assert.True(t, free.TotalPrice.IsZero())
}

func TestConsumeHugeCountIsInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.purchase(t, 10, "2")
	_, err := f.svc.CompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 3})
	require.NoError(t, err)

	_, err = f.svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: math.MaxInt64})
	assert.ErrorIs(t, err, domain.ErrInsufficientSessions)
	assert.NotErrorIs(t, err, domain.ErrPoolInvariant)
	assert.Equal(t, int64(7), f.balance(t).AvailableSessions)
}

func TestCompleteThenConsumeBeyondBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.purchase(t, 100, "2")
	completed, err := f.svc.CompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, domain.Balance{InstitutionID: "inst-1", TotalSessions: 100, AvailableSessions: 100}, f.balance(t))

	_, err = f.svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 150})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	assert.Equal(t, domain.Balance{InstitutionID: "inst-1", TotalSessions: 100, AvailableSessions: 100}, f.balance(t))

	b, err := f.svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.AvailableSessions)

	_, err = f.svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 1})
	assert.ErrorIs(t, err, domain.ErrInsufficientSessions)

	assert.Equal(t, float64(100), testutil.ToFloat64(f.metrics.SessionsConsumed))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PurchasesCompleted))
}

func TestConsumeWithoutPoolFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConsumeSession(context.Background(), domain.ConsumeRequest{InstitutionID: "inst-1", Count: 1})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	_, err = f.svc.ConsumeSession(context.Background(), domain.ConsumeRequest{InstitutionID: "inst-1", Count: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidCount)
}

func TestCompletedPurchaseCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.purchase(t, 10, "1")
	_, err := f.svc.CompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	before := f.balance(t)

	_, err = f.svc.CancelPurchase(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, before, f.balance(t))

	_, err = f.svc.CompletePurchase(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrPurchaseNotPending)
	assert.Equal(t, before, f.balance(t))
}

func TestCancelPendingLeavesTotalUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.purchase(t, 40, "1.5")
	cancelled, err := f.svc.CancelPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(0), f.balance(t).TotalSessions)

	_, err = f.svc.CompletePurchase(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.CancelPurchase(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)

	assert.Equal(t, []string{events.TypePurchaseCreated, events.TypePurchaseCancelled}, f.recorder.Types())
}

func TestCompletionsAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var want int64
	for _, q := range []int64{5, 15, 30} {
		p := f.purchase(t, q, "1")
		_, err := f.svc.CompletePurchase(ctx, p.ID)
		require.NoError(t, err)
		want += q
		assert.Equal(t, want, f.balance(t).TotalSessions)
	}
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.purchase(t, 20, "1")
	_, err := f.svc.CompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	f.svc.maxRetries = 1000

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 1})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, succeeded)
	b := f.balance(t)
	assert.Equal(t, int64(20), b.UsedSessions)
	assert.Equal(t, int64(0), b.AvailableSessions)
}

func TestAuditTrailRecordsPurchaseLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := auditdomain.WithActor(context.Background(), auditdomain.Actor{Type: auditdomain.ActorTypeAPI, ID: "billing-bot"})

	p, err := f.svc.CreatePurchase(ctx, domain.CreatePurchaseRequest{InstitutionID: "inst-1", Quantity: 3, PricePerSession: decimal.NewFromInt(2)})
	require.NoError(t, err)
	_, err = f.svc.CompletePurchase(ctx, p.ID)
	require.NoError(t, err)

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{InstitutionID: &p.InstitutionID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "ledger.purchase.completed", logs[0].Action)
	assert.Equal(t, "billing-bot", *logs[0].ActorID)
}
