package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
)

var (
	ErrInvalidRequest = apperr.Wrap(apperr.ErrValidation, "invalid_request")
	ErrInternal       = errors.New("internal_error")
)

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidState, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrInsufficientBalance:
		return http.StatusUnprocessableEntity
	case apperr.ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the error envelope for err and stops the chain.
// Errors without a known kind are reported as internal.
func AbortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := ErrorBody{Kind: ErrInternal.Error(), Message: ErrInternal.Error()}
	switch kind := apperr.Kind(err); kind {
	case nil:
	case apperr.ErrStorageUnavailable:
		body = ErrorBody{Kind: kind.Error(), Message: kind.Error()}
	default:
		body = ErrorBody{Kind: kind.Error(), Message: publicMessage(err, kind)}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

// publicMessage strips the kind prefix so clients see the domain code.
func publicMessage(err error, kind error) string {
	msg := err.Error()
	if trimmed, ok := strings.CutPrefix(msg, kind.Error()+": "); ok {
		return trimmed
	}
	return msg
}
