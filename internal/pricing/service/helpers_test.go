package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	auditservice "github.com/railzwaylabs/interviewledger/internal/audit/service"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/events"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	institutionrepo "github.com/railzwaylabs/interviewledger/internal/institution/repository"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/railzwaylabs/interviewledger/internal/pricing/repository"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clock    *clock.Fake
	cfg      config.Config
	svc      *Service
	audit    auditdomain.Service
	recorder *events.Recorder
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Pricing.MarkupCeiling = 100
	cfg.Storage.MaxCASRetries = 3
	cfg.Storage.ReadRetries = 2
	cfg.Storage.ReadRetryDelay = time.Millisecond
	cfg.Storage.SnapshotEnabled = true
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := db.OpenTest(t,
		&domain.GlobalConfig{},
		&domain.Override{},
		&institutiondomain.Institution{},
		&auditdomain.AuditLog{},
	)
	clk := clock.NewFake(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	cfg := testConfig()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	auditSvc := auditservice.NewService(auditservice.Params{DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk})
	recorder := &events.Recorder{}

	svc := New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		Config:       cfg,
		Clock:        clk,
		Repo:         repository.Provide(),
		Institutions: institutionrepo.Provide(conn),
		AuditSvc:     auditSvc,
		Publisher:    recorder,
	}).(*Service)

	return &fixture{db: conn, clock: clk, cfg: cfg, svc: svc, audit: auditSvc, recorder: recorder}
}

func (f *fixture) seedGlobal(t *testing.T, cost, markup, license string) {
	t.Helper()
	require.NoError(t, f.db.Create(&domain.GlobalConfig{
		ID: domain.GlobalConfigID,
		Rates: domain.Rates{
			CostPerMinute:     decimal.RequireFromString(cost),
			MarkupPercent:     decimal.RequireFromString(markup),
			AnnualLicenseCost: decimal.RequireFromString(license),
		},
		Version:   1,
		UpdatedAt: f.clock.Now(context.Background()),
	}).Error)
}

func (f *fixture) seedInstitution(t *testing.T, id string, active bool) {
	t.Helper()
	now := f.clock.Now(context.Background())
	require.NoError(t, f.db.Create(&institutiondomain.Institution{ID: id, Name: id, IsActive: true, CreatedAt: now, UpdatedAt: now}).Error)
	if !active {
		require.NoError(t, f.db.Model(&institutiondomain.Institution{}).Where("id = ?", id).Update("is_active", false).Error)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
