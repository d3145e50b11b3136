package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a requested resource does not exist.
type NotFoundError struct {
	Message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{msg}
}

func (err NotFoundError) Error() string {
	if err.Message == "" {
		return "not found"
	}
	return err.Message
}

// PermissionError is returned when the request user does not own the resource.
type PermissionError struct {
	Message string
}

func NewPermissionError(msg string) error {
	return &PermissionError{msg}
}

func (err PermissionError) Error() string {
	if err.Message == "" {
		return "you do not have permission to perform this action"
	}
	return err.Message
}

// UnavailableError is returned when an optional backing service is not configured.
type UnavailableError struct {
	Message string
}

func NewUnavailableError(msg string) error {
	return &UnavailableError{msg}
}

func (err UnavailableError) Error() string { return err.Message }

// ProviderError wraps a failure of an external provider (AI completion, object storage).
type ProviderError struct {
	Op  string
	Err error
}

func NewProviderError(op string, err error) error {
	return &ProviderError{op, err}
}

func (err ProviderError) Error() string {
	if err.Err == nil {
		return err.Op
	}
	return err.Op + ": " + err.Err.Error()
}

func (err ProviderError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}
