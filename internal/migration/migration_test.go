package migration

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/railzwaylabs/interviewledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)
}

func TestMigrationsChecksumIsStable(t *testing.T) {
	first, err := MigrationsChecksum()
	require.NoError(t, err)
	second, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestEveryUpHasDown(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			assert.True(t, names[strings.TrimSuffix(name, ".up.sql")+".down.sql"], name)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, ok := parseMigrationVersion("0003_ledger.up.sql")
	assert.True(t, ok)
	assert.Equal(t, uint(3), v)

	_, ok = parseMigrationVersion("ledger.up.sql")
	assert.False(t, ok)
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn := db.OpenTest(t)
	require.NoError(t, Run(context.Background(), conn, "sqlite", zap.NewNop()))

	for _, table := range []string{"institutions", "pricing_configs", "pricing_overrides", "price_changes", "session_pools", "session_purchases", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestMigrationSetIsOrdered(t *testing.T) {
	set, err := loadMigrationSet()
	require.NoError(t, err)
	require.NotEmpty(t, set)
	for i := 1; i < len(set); i++ {
		assert.Less(t, set[i-1].Version, set[i].Version)
	}
	assert.Equal(t, set.Latest(), set[len(set)-1].Version)
}

func TestLockKeyIsStableAndPositive(t *testing.T) {
	assert.Equal(t, lockKey(), lockKey())
	assert.Positive(t, lockKey())
}
