package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/railzwaylabs/interviewledger/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryUnavailableRecovers(t *testing.T) {
	calls := 0
	v, err := RetryUnavailable(context.Background(), RetryPolicy{Attempts: 3, Delay: time.Millisecond}, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, driver.ErrBadConn
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetryUnavailableGivesUp(t *testing.T) {
	calls := 0
	_, err := RetryUnavailable(context.Background(), RetryPolicy{Attempts: 2, Delay: time.Millisecond}, func() (int, error) {
		calls++
		return 0, driver.ErrBadConn
	})
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.Equal(t, 2, calls)
}

func TestRetryUnavailableStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := RetryUnavailable(context.Background(), RetryPolicy{Attempts: 5, Delay: time.Millisecond}, func() (string, error) {
		calls++
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
