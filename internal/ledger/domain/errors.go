package domain

import "github.com/railzwaylabs/interviewledger/internal/apperr"

var (
	ErrInvalidInstitution = apperr.Wrap(apperr.ErrValidation, "invalid_institution_id")
	ErrInvalidQuantity    = apperr.Wrap(apperr.ErrValidation, "invalid_quantity")
	ErrInvalidPrice       = apperr.Wrap(apperr.ErrValidation, "invalid_price_per_session")
	ErrInvalidCount       = apperr.Wrap(apperr.ErrValidation, "invalid_session_count")
	ErrInvalidPurchaseID  = apperr.Wrap(apperr.ErrValidation, "invalid_purchase_id")
	ErrMalformedPayload   = apperr.Wrap(apperr.ErrValidation, "malformed_purchase_payload")

	ErrPurchaseNotFound   = apperr.Wrap(apperr.ErrNotFound, "purchase_not_found")
	ErrPurchaseNotPending = apperr.Wrap(apperr.ErrInvalidState, "purchase_not_pending")
	// ErrPurchaseAnomalous rejects completing an imported record that failed
	// sanitizing; it can only be cancelled.
	ErrPurchaseAnomalous = apperr.Wrap(apperr.ErrInvalidState, "purchase_anomalous")

	ErrInsufficientSessions = apperr.Wrap(apperr.ErrInsufficientBalance, "insufficient_sessions")
	ErrPoolInvariant        = apperr.Wrap(apperr.ErrInvalidState, "session_pool_invariant_violated")
)
