// Package apperr holds the error kinds shared by the pricing, scheduling and
// ledger services. Domain packages declare their own sentinels wrapping one of
// these kinds so callers can branch with errors.Is on either.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation_error")
	ErrInvalidState        = errors.New("invalid_state")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrStorageUnavailable  = errors.New("storage_unavailable")
	ErrNotFound            = errors.New("not_found")

	// ErrConflict signals a lost optimistic-concurrency race. Services retry
	// it and only return it once their retry budget is spent.
	ErrConflict = errors.New("conflict")
)

// Wrap returns a sentinel error of the given kind with a snake_case code.
func Wrap(kind error, code string) error {
	return fmt.Errorf("%w: %s", kind, code)
}

// Kind reports which shared kind err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrInvalidState,
		ErrInsufficientBalance,
		ErrStorageUnavailable,
		ErrNotFound,
		ErrConflict,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
