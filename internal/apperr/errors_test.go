package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsKind(t *testing.T) {
	err := Wrap(ErrValidation, "invalid_quantity")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation_error: invalid_quantity", err.Error())

	wrapped := fmt.Errorf("create purchase: %w", err)
	assert.ErrorIs(t, wrapped, err)
	assert.Equal(t, ErrValidation, Kind(wrapped))
}

func TestKindUnknown(t *testing.T) {
	assert.Nil(t, Kind(errors.New("boom")))
	assert.Nil(t, Kind(nil))
}
