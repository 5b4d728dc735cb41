package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Global: domain.Rates{
			CostPerMinute:     decimal.RequireFromString("0.50"),
			MarkupPercent:     decimal.RequireFromString("20"),
			AnnualLicenseCost: decimal.RequireFromString("1200"),
		},
		Override: &domain.OverrideState{
			Rates: domain.Rates{
				CostPerMinute:     decimal.RequireFromString("0.40"),
				MarkupPercent:     decimal.RequireFromString("10"),
				AnnualLicenseCost: decimal.RequireFromString("1000"),
			},
			Enabled: true,
		},
		CapturedAt: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisSnapshotCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisSnapshotCache(client, time.Hour)
	ctx := context.Background()

	missing, err := c.Load(ctx, "inst-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	snap := sampleSnapshot()
	require.NoError(t, c.Save(ctx, "inst-1", snap))

	got, err := c.Load(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Global.Equal(snap.Global))
	require.NotNil(t, got.Override)
	assert.True(t, got.Override.Rates.Equal(snap.Override.Rates))
	assert.True(t, got.CapturedAt.Equal(snap.CapturedAt))

	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"inst-1"))
}

func TestRedisSnapshotCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisSnapshotCache(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Save(ctx, "", sampleSnapshot()))

	mr.FastForward(2 * time.Minute)

	got, err := c.Load(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySnapshotCache(t *testing.T) {
	c := NewMemorySnapshotCache()
	ctx := context.Background()

	got, err := c.Load(ctx, "inst-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Save(ctx, "inst-1", sampleSnapshot()))
	got, err = c.Load(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Override.Enabled)
}

func TestProvideSelectsBackend(t *testing.T) {
	cfg := config.Config{}
	assert.Nil(t, Provide(Params{Config: cfg}))

	cfg.Storage.SnapshotEnabled = true
	_, isMemory := Provide(Params{Config: cfg}).(*MemorySnapshotCache)
	assert.True(t, isMemory)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	_, isRedis := Provide(Params{Config: cfg, Redis: client}).(*RedisSnapshotCache)
	assert.True(t, isRedis)
}
