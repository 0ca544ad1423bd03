package errutil

import "fmt"

// Detail carries a field-level validation message.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BaseError is the error type every service returns across the HTTP boundary.
// Code decides the HTTP status; Message is what the storefront shows.
type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus { return e.Code }

func (e BaseError) Unwrap() error { return e.Err }

// Is lets sentinel errors match through wrapping even though BaseError
// carries non-comparable fields.
func (e BaseError) Is(target error) bool {
	t, ok := target.(BaseError)
	return ok && e.Code == t.Code && e.Message == t.Message
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func BadRequest(msg string, err error, opts ...Option) error {
	return New(StatusBadRequest, msg, append(opts, WithErr(err))...)
}

func ValidationFailed(msg string, err error, opts ...Option) error {
	return New(StatusValidationFailed, msg, append(opts, WithErr(err))...)
}

func NotFound(msg string, err error, opts ...Option) error {
	return New(StatusNotFound, msg, append(opts, WithErr(err))...)
}

func Gone(msg string, err error, opts ...Option) error {
	return New(StatusGone, msg, append(opts, WithErr(err))...)
}

func Conflict(msg string, err error, opts ...Option) error {
	return New(StatusConflict, msg, append(opts, WithErr(err))...)
}

func Unauthorized(msg string, err error, opts ...Option) error {
	return New(StatusUnauthorized, msg, append(opts, WithErr(err))...)
}

func Forbidden(msg string, err error, opts ...Option) error {
	return New(StatusForbidden, msg, append(opts, WithErr(err))...)
}

func Internal(msg string, err error, opts ...Option) error {
	return New(StatusInternal, msg, append(opts, WithErr(err))...)
}
