package affiliate

import (
	"errors"

	"aurelia-commerce/pkg/errutil"
)

var (
	ErrCodeNotFound = errutil.NotFound("affiliate code not found", nil)
	ErrCodeInactive = errutil.NotFound("affiliate code is not active", nil)
	ErrCodeExpired  = errutil.Gone("affiliate code has expired", nil)

	ErrInvalidCodeFormat   = errutil.ValidationFailed("code must be 6-20 alphanumeric characters", nil)
	ErrInvalidRate         = errutil.ValidationFailed("rates must be between 0 and 1", nil)
	ErrInvalidStatus       = errutil.ValidationFailed("status must be active, inactive or suspended", nil)
	ErrCodeExists          = errutil.Conflict("this code is already taken", nil)
	ErrHasConversions      = errutil.BadRequest("code has converted clicks and cannot be deleted", nil)
	ErrGenerationExhausted = errutil.Internal("could not generate a unique code", nil)
)

// IsExpired reports whether err marks a lookup of an expired code.
func IsExpired(err error) bool {
	var base errutil.BaseError
	return errors.As(err, &base) && base.Status() == errutil.StatusGone
}
