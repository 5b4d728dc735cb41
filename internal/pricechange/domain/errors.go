package domain

import "github.com/railzwaylabs/interviewledger/internal/apperr"

var (
	ErrInvalidID              = apperr.Wrap(apperr.ErrValidation, "invalid_price_change_id")
	ErrEffectiveDateNotFuture = apperr.Wrap(apperr.ErrValidation, "effective_date_not_in_future")
	ErrInvalidStatus          = apperr.Wrap(apperr.ErrValidation, "invalid_price_change_status")
	ErrNotFound               = apperr.Wrap(apperr.ErrNotFound, "price_change_not_found")
	ErrNotScheduled           = apperr.Wrap(apperr.ErrInvalidState, "price_change_not_scheduled")
)
