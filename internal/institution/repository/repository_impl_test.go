package repository

import (
	"context"
	"testing"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/institution/domain"
	"github.com/railzwaylabs/interviewledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryGet(t *testing.T) {
	conn := db.OpenTest(t, &domain.Institution{})
	now := time.Now().UTC()
	require.NoError(t, conn.Create(&domain.Institution{ID: "inst-1", Name: "Acme College", IsActive: true, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&domain.Institution{ID: "inst-2", Name: "Closed Univ", CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, conn.Model(&domain.Institution{}).Where("id = ?", "inst-2").Update("is_active", false).Error)

	dir := Provide(conn)
	ctx := context.Background()

	inst, err := dir.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme College", inst.Name)

	_, err = dir.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = dir.Get(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = RequireActive(ctx, dir, "inst-2")
	assert.ErrorIs(t, err, domain.ErrInactive)

	active, err := RequireActive(ctx, dir, "inst-1")
	require.NoError(t, err)
	assert.True(t, active.IsActive)
}
