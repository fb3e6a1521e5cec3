package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in API envelopes and recorded on failed runs.
const (
	CodeFetch        = "fetch_error"
	CodeGeneration   = "generation_error"
	CodeValidation   = "validation_error"
	CodePersistence  = "persistence_error"
	CodeOwnership    = "ownership_error"
	CodePrecondition = "precondition_error"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)

type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Newf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the application code from any error in the chain,
// defaulting to internal_error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error code to the status used by the API layer.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound, CodeOwnership:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodePrecondition:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeFetch, CodeGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Is(err error, code string) bool {
	return CodeOf(err) == code
}
