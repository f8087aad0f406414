// Package errors carries typed, coded errors from the services to the HTTP
// layer, which renders them using the per-code Metadata.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
	// CodePartialFailure marks an operation whose primary write landed but
	// some fan-out steps (uploads, score increments) did not.
	CodePartialFailure Code = "PARTIAL_FAILURE"
)

// Metadata controls how a code is rendered to API clients. When
// ClientMessage is set the error's own message is shown instead of
// PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ClientMessage  bool
	DetailsAllowed bool
}

// clientFacing codes echo the caller's message; the rest show PublicMessage.
func clientFacing(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, ClientMessage: true, DetailsAllowed: details}
}

var registry = map[Code]Metadata{
	CodeValidation:     clientFacing(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:   clientFacing(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:      clientFacing(http.StatusForbidden, "access denied", false),
	CodeNotFound:       clientFacing(http.StatusNotFound, "resource not found", false),
	CodeConflict:       clientFacing(http.StatusConflict, "conflict detected", false),
	CodePartialFailure: clientFacing(http.StatusBadGateway, "operation partially applied", true),
	CodeInternal:       {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:     {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	meta, ok := registry[code]
	if !ok {
		return registry[CodeInternal]
	}
	return meta
}

// Error is a coded error with an optional cause and client-visible details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches err as the cause. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in err's chain, or
// CodeInternal when none is present.
func CodeOf(err error) Code {
	return As(err).Code()
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether a client may safely retry after err.
func Retryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}
