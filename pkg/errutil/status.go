package errutil

import "net/http"

// CoreStatus is a transport-independent status code. It is rendered verbatim
// into the response envelope's error field.
type CoreStatus string

const (
	StatusBadRequest       CoreStatus = "BAD_REQUEST"
	StatusValidationFailed CoreStatus = "VALIDATION_FAILED"
	StatusUnauthorized     CoreStatus = "UNAUTHORIZED"
	StatusForbidden        CoreStatus = "FORBIDDEN"
	StatusNotFound         CoreStatus = "NOT_FOUND"
	StatusConflict         CoreStatus = "CONFLICT"
	StatusGone             CoreStatus = "GONE"
	StatusInternal         CoreStatus = "INTERNAL"
)

// HTTPStatus maps a CoreStatus to its HTTP status code.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed, StatusConflict:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusGone:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
