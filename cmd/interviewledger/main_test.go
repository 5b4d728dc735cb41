package main

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTime("2025-06-01T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), got)

	_, err = parseTime("next week")
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"scheduler"},
		{"migrate"},
		{"tick"},
		{"resolve"},
		{"price-change", "schedule"},
		{"price-change", "apply"},
		{"price-change", "cancel"},
		{"price-change", "list"},
		{"override", "enable"},
		{"override", "disable"},
		{"purchase", "create"},
		{"purchase", "complete"},
		{"purchase", "cancel"},
		{"purchase", "import"},
		{"sessions", "consume"},
		{"sessions", "balance"},
		{"invoice", "render"},
		{"audit", "export"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name(), path)
	}
}

func TestCommandContextCarriesActor(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"sessions", "balance"})
	require.NoError(t, err)
	require.NoError(t, root.PersistentFlags().Set("actor", "ops-7"))
	cmd.SetContext(context.Background())

	actor := auditdomain.ActorFromContext(commandContext(cmd))
	assert.Equal(t, auditdomain.ActorTypeOperator, actor.Type)
	assert.Equal(t, "ops-7", actor.ID)
}

func TestReadVersionFromEnv(t *testing.T) {
	t.Setenv("INTERVIEWLEDGER_VERSION", "1.4.0")
	assert.Equal(t, "1.4.0", readVersionFromEnv())
	t.Setenv("INTERVIEWLEDGER_VERSION", "")
	assert.Equal(t, "dev", readVersionFromEnv())
}
