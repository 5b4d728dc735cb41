package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/events"
	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"github.com/railzwaylabs/interviewledger/internal/observability"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestImportValidCompletedCreditsPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ImportPurchase(ctx, []byte(`{
		"id": "pay_001",
		"institution_id": "inst-1",
		"quantity": 30,
		"price_per_session": "2.50",
		"status": "completed",
		"payment_reference": "ref-001",
		"purchase_date": "2025-03-01T10:00:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictValid, res.Verdict)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "pay_001", res.Purchase.ID)
	assert.Equal(t, domain.PurchaseSourceImport, res.Purchase.Source)
	assert.True(t, res.Purchase.TotalPrice.Equal(decimal.RequireFromString("75")))
	assert.Equal(t, int64(30), f.balance(t).TotalSessions)

	again, err := f.svc.ImportPurchase(ctx, []byte(`{"id":"pay_001","institution_id":"inst-1","quantity":30,"price_per_session":"2.50","status":"completed"}`))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, "pay_001", again.Purchase.ID)
	assert.Equal(t, int64(30), f.balance(t).TotalSessions)

	byRef, err := f.svc.ImportPurchase(ctx, []byte(`{"institution_id":"inst-1","quantity":30,"price_per_session":"2.50","payment_reference":"ref-001"}`))
	require.NoError(t, err)
	assert.True(t, byRef.Duplicate)
	assert.Equal(t, int64(30), f.balance(t).TotalSessions)

	assert.Equal(t, []string{events.TypePurchaseImported}, f.recorder.Types())
}

func TestImportAnomalousIsParked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ImportPurchase(ctx, []byte(`{
		"id": "pay_bad",
		"institution_id": "inst-1",
		"quantity": -4,
		"price_per_session": 10,
		"status": "completed",
		"purchase_date": "2025-03-02"
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictAnomalous, res.Verdict)
	assert.Equal(t, []string{domain.ReasonInvalidQuantity}, res.Reasons)
	assert.Equal(t, domain.PurchaseStatusPending, res.Purchase.Status)
	assert.Equal(t, int64(0), res.Purchase.Quantity)
	assert.Equal(t, int64(0), f.balance(t).TotalSessions)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PurchaseAnomalies.WithLabelValues(domain.ReasonInvalidQuantity)))

	history, err := f.svc.ListBillingHistory(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.True(t, history.Items[0].Anomalous)
	assert.Equal(t, []string{"pay_bad: invalid_quantity"}, history.Warnings)
}

func TestImportWithoutDateKeepsNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ImportPurchase(ctx, []byte(`{"institution_id":"inst-1","quantity":25,"price_per_session":4,"status":"completed"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictValid, res.Verdict)
	assert.Empty(t, res.Reasons)
	assert.Equal(t, domain.PurchaseStatusCompleted, res.Purchase.Status)
	assert.Equal(t, int64(25), res.Purchase.Quantity)
	assert.True(t, res.Purchase.TotalPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Purchase.PurchaseDate.Equal(now))
	assert.Equal(t, int64(25), f.balance(t).TotalSessions)
}

func TestAnomalousImportCannotBeCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ImportPurchase(ctx, []byte(`{"id":"pay_ten","institution_id":"inst-1","quantity":"ten","price_per_session":3,"status":"completed","purchase_date":"2025-03-03"}`))
	require.NoError(t, err)
	require.Equal(t, domain.VerdictAnomalous, res.Verdict)

	_, err = f.svc.CompletePurchase(ctx, "pay_ten")
	assert.ErrorIs(t, err, domain.ErrPurchaseAnomalous)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	stored, err := f.svc.GetPurchase(ctx, "pay_ten")
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusPending, stored.Status)
	assert.Equal(t, int64(0), f.balance(t).TotalSessions)

	cancelled, err := f.svc.CancelPurchase(ctx, "pay_ten")
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCancelled, cancelled.Status)
}

func TestImportRejectsUnattributablePayloads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportPurchase(ctx, []byte(`{not json`))
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)

	_, err = f.svc.ImportPurchase(ctx, []byte(`{"quantity": 1}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInstitution)

	_, err = f.svc.ImportPurchase(ctx, []byte(`{"institution_id": "ghost", "quantity": 1}`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type stubResolver struct {
	res *pricingdomain.Resolution
	err error
}

func (s stubResolver) Resolve(context.Context, string) (*pricingdomain.Resolution, error) {
	return s.res, s.err
}

func TestBillingHistoryCarriesBalanceAndPricing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.purchase(t, 8, "4")
	_, err := f.svc.CompletePurchase(ctx, p.ID)
	require.NoError(t, err)
	f.purchase(t, 2, "4")

	f.svc.resolver = stubResolver{res: &pricingdomain.Resolution{
		InstitutionID: "inst-1",
		Source:        pricingdomain.SourceGlobal,
		SessionPrice:  decimal.RequireFromString("4.00"),
	}}
	history, err := f.svc.ListBillingHistory(ctx, "inst-1")
	require.NoError(t, err)
	assert.Len(t, history.Items, 2)
	assert.Empty(t, history.Warnings)
	assert.Equal(t, int64(8), history.Balance.AvailableSessions)
	require.NotNil(t, history.Pricing)
	assert.Equal(t, "4", history.Pricing.SessionPrice.String())

	f.svc.resolver = stubResolver{err: pricingdomain.ErrNoSnapshot}
	history, err = f.svc.ListBillingHistory(ctx, "inst-1")
	require.NoError(t, err)
	assert.Nil(t, history.Pricing)
	assert.Equal(t, []string{warningPricingUnavailable}, history.Warnings)

	item, err := f.svc.GetBillingItem(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusCompleted, item.Status)
	assert.False(t, item.Anomalous)
}

type mockRepo struct {
	mock.Mock
	domain.Repository
}

func (m *mockRepo) GetPool(ctx context.Context, _ *gorm.DB, institutionID string) (*domain.SessionPool, error) {
	args := m.Called(ctx, institutionID)
	pool, _ := args.Get(0).(*domain.SessionPool)
	if pool != nil {
		copied := *pool
		pool = &copied
	}
	return pool, args.Error(1)
}

func (m *mockRepo) UpdatePool(ctx context.Context, _ *gorm.DB, pool *domain.SessionPool, expectedVersion int64) (bool, error) {
	args := m.Called(ctx, pool.UsedSessions, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func newMockService(repo domain.Repository, retries int) (*Service, *observability.Metrics) {
	cfg := testConfig()
	cfg.Storage.MaxCASRetries = retries
	metrics := observability.NewNopMetrics()
	svc := NewService(Params{
		Log:     zap.NewNop(),
		Config:  cfg,
		Clock:   clock.NewFake(now),
		Repo:    repo,
		Metrics: metrics,
	}).(*Service)
	return svc, metrics
}

func TestConsumeRetriesLostRace(t *testing.T) {
	repo := &mockRepo{}
	ctx := context.Background()
	repo.On("GetPool", ctx, "inst-1").Return(&domain.SessionPool{InstitutionID: "inst-1", TotalSessions: 10, UsedSessions: 2, Version: 3}, nil).Once()
	repo.On("GetPool", ctx, "inst-1").Return(&domain.SessionPool{InstitutionID: "inst-1", TotalSessions: 10, UsedSessions: 4, Version: 4}, nil).Once()
	repo.On("UpdatePool", ctx, int64(3), int64(3)).Return(false, nil).Once()
	repo.On("UpdatePool", ctx, int64(5), int64(4)).Return(true, nil).Once()

	svc, metrics := newMockService(repo, 5)
	b, err := svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.AvailableSessions)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CASConflicts.WithLabelValues("session_consume")))
	repo.AssertExpectations(t)
}

func TestConsumeGivesUpAfterRetries(t *testing.T) {
	repo := &mockRepo{}
	ctx := context.Background()
	repo.On("GetPool", ctx, "inst-1").Return(&domain.SessionPool{InstitutionID: "inst-1", TotalSessions: 10, Version: 1}, nil)
	repo.On("UpdatePool", ctx, int64(1), int64(1)).Return(false, nil)

	svc, _ := newMockService(repo, 3)
	_, err := svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 1})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	repo.AssertNumberOfCalls(t, "UpdatePool", 3)
}

func TestConsumeSurfacesStorageErrors(t *testing.T) {
	repo := &mockRepo{}
	ctx := context.Background()
	boom := errors.New("disk on fire")
	repo.On("GetPool", ctx, "inst-1").Return(nil, boom)

	svc, _ := newMockService(repo, 3)
	_, err := svc.ConsumeSession(ctx, domain.ConsumeRequest{InstitutionID: "inst-1", Count: 1})
	assert.ErrorIs(t, err, boom)
}
