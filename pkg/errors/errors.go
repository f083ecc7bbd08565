// Package errors defines the error-kind taxonomy shared by the storage
// adapter, provisioning controller and node service, and maps each kind
// to an HTTP status and a stable instance tag for the error envelope.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is an error-kind tag, not a Go type name.
type Kind string

const (
	KindPathError         Kind = "PathError"
	KindNodeNotFound      Kind = "NodeNotFound"
	KindParentNotFound    Kind = "ParentNotFound"
	KindPathDuplicated    Kind = "PathDuplicated"
	KindDataTypeError     Kind = "DataTypeError"
	KindInvalidInput      Kind = "InvalidInput"
	KindAuthFailure       Kind = "AuthFailure"
	KindCancelled         Kind = "Cancelled"
	KindNodeCreationError Kind = "NodeCreationError"
	KindInternal          Kind = "Internal"
)

// AppError is the error kind carried from the storage adapter up to the
// node service boundary.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func newErr(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func NewPathError(message string) *AppError         { return newErr(KindPathError, message) }
func NewNodeNotFound(message string) *AppError       { return newErr(KindNodeNotFound, message) }
func NewParentNotFound(message string) *AppError     { return newErr(KindParentNotFound, message) }
func NewPathDuplicated(message string) *AppError     { return newErr(KindPathDuplicated, message) }
func NewDataTypeError(message string) *AppError      { return newErr(KindDataTypeError, message) }
func NewInvalidInput(message string) *AppError       { return newErr(KindInvalidInput, message) }
func NewAuthFailure(message string) *AppError        { return newErr(KindAuthFailure, message) }
func NewCancelled(message string) *AppError          { return newErr(KindCancelled, message) }
func NewNodeCreationError(message string) *AppError  { return newErr(KindNodeCreationError, message) }
func NewInternal(message string) *AppError           { return newErr(KindInternal, message) }

// As extracts an *AppError from err's chain, if present.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// HTTPStatus maps an error kind to the status code from the error
// handling design; unclassified errors (including plain Go errors that
// never became an AppError) map to 500.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindNodeNotFound, KindParentNotFound:
		return http.StatusNotFound
	case KindPathError, KindPathDuplicated, KindDataTypeError, KindInvalidInput:
		return http.StatusBadRequest
	case KindAuthFailure:
		return http.StatusForbidden
	case KindNodeCreationError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Wrap attaches context to err without discarding its kind, or creates
// a new Internal error if err is not already an AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return &AppError{Kind: appErr.Kind, Message: message + ": " + appErr.Message, Cause: appErr.Cause}
	}
	return NewInternal(message).WithCause(err)
}
