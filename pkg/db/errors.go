package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
)

// IsUnavailable reports whether err means the store could not be reached,
// as opposed to the store rejecting the request.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrStorageUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 57P0x: operator intervention / shutdown.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	if pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify wraps unavailable-store errors into apperr.ErrStorageUnavailable and
// returns every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, apperr.ErrStorageUnavailable) {
		return err
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %v", apperr.ErrStorageUnavailable, err)
	}
	return err
}
