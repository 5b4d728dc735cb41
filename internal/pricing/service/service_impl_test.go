package service

import (
	"context"
	"sync"
	"testing"

	"github.com/railzwaylabs/interviewledger/internal/apperr"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/events"
	institutiondomain "github.com/railzwaylabs/interviewledger/internal/institution/domain"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFieldGlobal(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	ctx := context.Background()

	prev, err := f.svc.ApplyField(ctx, domain.GlobalTarget(), domain.FieldCostPerMinute, dec("0.15"))
	require.NoError(t, err)
	assert.True(t, prev.Equal(dec("0.11")))

	cfg, err := f.svc.GetGlobal(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Rates.CostPerMinute.Equal(dec("0.15")))
	assert.True(t, cfg.Rates.MarkupPercent.Equal(dec("36.36")))
	assert.Equal(t, int64(2), cfg.Version)

	assert.Equal(t, []string{events.TypePricingUpdated}, f.recorder.Types())

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{Action: "pricing.field.updated"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0.11", logs[0].Metadata["previous_value"])
}

func TestApplyFieldGlobalWithoutRowCreatesIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prev, err := f.svc.ApplyField(ctx, domain.GlobalTarget(), domain.FieldMarkupPercent, dec("25"))
	require.NoError(t, err)
	assert.True(t, prev.IsZero())

	cfg, err := f.svc.GetGlobal(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Rates.MarkupPercent.Equal(dec("25")))
	assert.True(t, cfg.Rates.CostPerMinute.IsZero())
}

func TestApplyFieldRejectsInvalidValues(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	ctx := context.Background()

	_, err := f.svc.ApplyField(ctx, domain.GlobalTarget(), domain.FieldCostPerMinute, dec("-0.01"))
	assert.ErrorIs(t, err, domain.ErrNegativeRate)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.ApplyField(ctx, domain.GlobalTarget(), domain.FieldMarkupPercent, dec("100.01"))
	assert.ErrorIs(t, err, domain.ErrMarkupAboveCeiling)

	_, err = f.svc.ApplyField(ctx, domain.GlobalTarget(), domain.Field("discount"), dec("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidField)

	_, err = f.svc.ApplyField(ctx, domain.Target{Scope: domain.ScopeInstitution}, domain.FieldCostPerMinute, dec("1"))
	assert.ErrorIs(t, err, domain.ErrInstitutionRequired)

	cfg, err := f.svc.GetGlobal(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Rates.CostPerMinute.Equal(dec("0.11")))
	assert.Empty(t, f.recorder.Events)
}

func TestMarkupZeroIsValid(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")

	_, err := f.svc.ApplyField(context.Background(), domain.GlobalTarget(), domain.FieldMarkupPercent, dec("0"))
	assert.NoError(t, err)
}

func TestInstitutionWriteSeedsOverrideFromGlobal(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	ctx := context.Background()

	prev, err := f.svc.ApplyField(ctx, domain.InstitutionTarget("inst-1"), domain.FieldCostPerMinute, dec("0.08"))
	require.NoError(t, err)
	assert.True(t, prev.Equal(dec("0.11")), "previous value comes from global when no override exists")

	o, err := f.svc.GetOverride(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, o.Enabled)
	assert.True(t, o.Rates.CostPerMinute.Equal(dec("0.08")))
	assert.True(t, o.Rates.MarkupPercent.Equal(dec("36.36")))
	assert.True(t, o.Rates.AnnualLicenseCost.Equal(dec("19.96")))

	global, err := f.svc.GetGlobal(ctx)
	require.NoError(t, err)
	assert.True(t, global.Rates.CostPerMinute.Equal(dec("0.11")))
}

func TestInstitutionWriteLandsOnDisabledOverride(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	f.seedInstitution(t, "inst-1", true)
	ctx := context.Background()

	_, err := f.svc.EnableOverride(ctx, "inst-1")
	require.NoError(t, err)
	_, err = f.svc.DisableOverride(ctx, "inst-1")
	require.NoError(t, err)

	_, err = f.svc.ApplyField(ctx, domain.InstitutionTarget("inst-1"), domain.FieldMarkupPercent, dec("50"))
	require.NoError(t, err)

	o, err := f.svc.GetOverride(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, o.Enabled)
	assert.True(t, o.Rates.MarkupPercent.Equal(dec("50")))
}

func TestEnableDisableOverride(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	f.seedInstitution(t, "inst-1", true)
	f.seedInstitution(t, "inst-closed", false)
	ctx := context.Background()

	_, err := f.svc.DisableOverride(ctx, "inst-1")
	assert.ErrorIs(t, err, domain.ErrOverrideNotFound)

	_, err = f.svc.EnableOverride(ctx, "inst-closed")
	assert.ErrorIs(t, err, institutiondomain.ErrInactive)

	_, err = f.svc.EnableOverride(ctx, "unknown")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	o, err := f.svc.EnableOverride(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, o.Enabled)
	assert.True(t, o.Rates.CostPerMinute.Equal(dec("0.11")))

	again, err := f.svc.EnableOverride(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, o.Version, again.Version, "enabling twice is a no-op")

	off, err := f.svc.DisableOverride(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, off.Enabled)

	items, err := f.svc.ListOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Enabled)

	logs, err := f.audit.List(ctx, auditdomain.ListRequest{InstitutionID: strPtr("inst-1")})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestCurrentValue(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	ctx := context.Background()

	v, err := f.svc.CurrentValue(ctx, f.db, domain.InstitutionTarget("inst-1"), domain.FieldAnnualLicenseCost)
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("19.96")))

	_, err = f.svc.ApplyField(ctx, domain.InstitutionTarget("inst-1"), domain.FieldAnnualLicenseCost, dec("10"))
	require.NoError(t, err)

	v, err = f.svc.CurrentValue(ctx, f.db, domain.InstitutionTarget("inst-1"), domain.FieldAnnualLicenseCost)
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("10")))
}

func TestWriteFieldReportsConflictOnStaleVersion(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	ctx := context.Background()

	cfg, err := f.svc.GetGlobal(ctx)
	require.NoError(t, err)

	// Another writer bumps the version between read and write.
	require.NoError(t, f.db.Model(&domain.GlobalConfig{}).Where("id = ?", domain.GlobalConfigID).Update("version", cfg.Version+1).Error)

	stale := *cfg
	stale.Rates = stale.Rates.With(domain.FieldCostPerMinute, dec("0.2"))
	ok, err := f.svc.repo.UpdateGlobal(ctx, f.db, &stale, cfg.Version)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentApplyFieldKeepsLastWrite(t *testing.T) {
	f := newFixture(t)
	f.seedGlobal(t, "0.11", "36.36", "19.96")
	f.svc.maxRetries = 50
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, v := range []string{"0.12", "0.13", "0.14", "0.15"} {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			_, err := f.svc.ApplyField(ctx, domain.GlobalTarget(), domain.FieldCostPerMinute, dec(v))
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	cfg, err := f.svc.GetGlobal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cfg.Version)
}

func strPtr(s string) *string { return &s }
