package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/railzwaylabs/interviewledger/internal/apperr"
	"github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

const notBlankTag = "notblank"

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so errors match request payloads.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	return v
}

var fieldErrors = map[string]error{
	"institution_id":    domain.ErrInvalidInstitution,
	"quantity":          domain.ErrInvalidQuantity,
	"price_per_session": domain.ErrInvalidPrice,
	"count":             domain.ErrInvalidCount,
}

// validationError maps the first failing field to its domain sentinel.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	if sentinel, ok := fieldErrors[verrs[0].Field()]; ok {
		return sentinel
	}
	return apperr.Wrap(apperr.ErrValidation, "invalid_"+verrs[0].Field())
}
