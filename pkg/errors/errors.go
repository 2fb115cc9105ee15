// Package errors carries a stable API code alongside the underlying cause so
// handlers can render a safe message while logs keep the full chain.
package errors

import (
	stdErrors "errors"
	"net/http"
)

// Code is the machine-readable "error.code" in API responses.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// rendering decides what a caller sees for a code. Codes with verbatim set
// show the error's own message; the rest show fallback.
type rendering struct {
	status   int
	fallback string
	verbatim bool
	details  bool
}

var renderings = map[Code]rendering{
	CodeValidation:    {http.StatusBadRequest, "validation failed", true, true},
	CodeUnauthorized:  {http.StatusUnauthorized, "Unauthorized", false, false},
	CodeForbidden:     {http.StatusForbidden, "Unauthorized", false, false},
	CodeNotFound:      {http.StatusNotFound, "not found", true, false},
	CodeConflict:      {http.StatusConflict, "conflict detected", true, false},
	CodeStateConflict: {http.StatusUnprocessableEntity, "state transition disallowed", true, true},
	CodeRateLimit:     {http.StatusTooManyRequests, "rate limit exceeded", true, false},
	CodeInternal:      {http.StatusInternalServerError, "internal server error", false, false},
	CodeDependency:    {http.StatusServiceUnavailable, "dependency unavailable", true, false},
}

func (c Code) rendering() rendering {
	if r, ok := renderings[c]; ok {
		return r
	}
	return renderings[CodeInternal]
}

// HTTPStatus maps the code to a response status; unknown codes are 500.
func (c Code) HTTPStatus() int { return c.rendering().status }

// Error is a coded application error. The zero cause means the error
// originated here rather than wrapping a lower layer.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Unauthorized is the generic authorization failure; it never carries detail.
func Unauthorized() *Error {
	return New(CodeUnauthorized, "Unauthorized")
}

// NotFound reports a missing resource by name, e.g. NotFound("order").
func NotFound(resource string) *Error {
	if resource == "" {
		return New(CodeNotFound, "not found")
	}
	return New(CodeNotFound, resource+" not found")
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

// PublicMessage is the string a caller may see for this error.
func (e *Error) PublicMessage() string {
	r := e.Code().rendering()
	if r.verbatim && e.Message() != "" {
		return e.message
	}
	return r.fallback
}

// PublicDetails returns attached details only for codes that may show them.
func (e *Error) PublicDetails() any {
	if e == nil || !e.Code().rendering().details {
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
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
