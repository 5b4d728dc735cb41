package domain

import "github.com/railzwaylabs/interviewledger/internal/apperr"

var (
	ErrInvalidField        = apperr.Wrap(apperr.ErrValidation, "invalid_pricing_field")
	ErrInvalidScope        = apperr.Wrap(apperr.ErrValidation, "invalid_pricing_scope")
	ErrNegativeRate        = apperr.Wrap(apperr.ErrValidation, "negative_rate")
	ErrMarkupAboveCeiling  = apperr.Wrap(apperr.ErrValidation, "markup_above_ceiling")
	ErrInstitutionRequired = apperr.Wrap(apperr.ErrValidation, "institution_required")
	ErrOverrideNotFound    = apperr.Wrap(apperr.ErrNotFound, "pricing_override_not_found")
	ErrNoSnapshot          = apperr.Wrap(apperr.ErrStorageUnavailable, "pricing_snapshot_unavailable")
)
