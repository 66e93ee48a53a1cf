package errutil

import (
	"errors"
	"fmt"
)

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is matches errors by code and message so sentinel values keep matching
// after a cause has been attached with Wrap.
func (e BaseError) Is(target error) bool {
	t, ok := target.(BaseError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
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

// Wrap attaches cause to a sentinel BaseError. Non BaseError sentinels are
// wrapped with fmt.Errorf.
func Wrap(sentinel error, cause error) error {
	var be BaseError
	if errors.As(sentinel, &be) {
		be.Err = cause
		return be
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Code returns the CoreStatus carried by err, or StatusUnknown.
func Code(err error) CoreStatus {
	if err == nil {
		return ""
	}

	var coder interface{ Status() CoreStatus }
	if errors.As(err, &coder) {
		return coder.Status()
	}
	return StatusUnknown
}

// Message returns the human readable message of err without the code prefix.
func Message(err error) string {
	var be BaseError
	if errors.As(err, &be) {
		return be.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsAuth reports whether err is an authentication or authorization failure.
func IsAuth(err error) bool {
	switch Code(err) {
	case StatusUnauthorized, StatusForbidden:
		return true
	default:
		return false
	}
}

// IsValidation reports whether err was raised before any request was sent.
func IsValidation(err error) bool {
	return Code(err) == StatusValidationFailed
}

func with(err error, options []Option) []Option {
	if err == nil {
		return options
	}
	return append(options, WithErr(err))
}

func NotFound(msg string, err error, options ...Option) error {
	return New(StatusNotFound, msg, with(err, options)...)
}

func UnprocessableEntity(msg string, err error, options ...Option) error {
	return New(StatusUnprocessableEntity, msg, with(err, options)...)
}

func UnsupportedMediaType(msg string, err error, options ...Option) error {
	return New(StatusUnsupportedMediaType, msg, with(err, options)...)
}

func Conflict(msg string, err error, options ...Option) error {
	return New(StatusConflict, msg, with(err, options)...)
}

func BadRequest(msg string, err error, options ...Option) error {
	return New(StatusBadRequest, msg, with(err, options)...)
}

func ValidationFailed(msg string, err error, options ...Option) error {
	return New(StatusValidationFailed, msg, with(err, options)...)
}

func Internal(msg string, err error, options ...Option) error {
	return New(StatusInternal, msg, with(err, options)...)
}

func Timeout(msg string, err error, options ...Option) error {
	return New(StatusTimeout, msg, with(err, options)...)
}

func Unauthorized(msg string, err error, options ...Option) error {
	return New(StatusUnauthorized, msg, with(err, options)...)
}

func Forbidden(msg string, err error, options ...Option) error {
	return New(StatusForbidden, msg, with(err, options)...)
}

func ClientClosedRequest(msg string, err error, options ...Option) error {
	return New(StatusClientClosedRequest, msg, with(err, options)...)
}

func BadGateway(msg string, err error, options ...Option) error {
	return New(StatusBadGateway, msg, with(err, options)...)
}
