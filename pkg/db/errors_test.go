package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestIsUnavailable(t *testing.T) {
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("duplicate key")))
	assert.True(t, IsUnavailable(driver.ErrBadConn))
	assert.True(t, IsUnavailable(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsUnavailable(&pgconn.PgError{Code: "57P01"}))
	assert.False(t, IsUnavailable(&pgconn.PgError{Code: "23505"}))
}

func TestClassify(t *testing.T) {
	err := Classify(driver.ErrBadConn)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)

	plain := errors.New("constraint failed")
	assert.Equal(t, plain, Classify(plain))
	assert.Nil(t, Classify(nil))
}
