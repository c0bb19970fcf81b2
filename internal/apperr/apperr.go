// Package apperr defines the domain error taxonomy surfaced to API clients.
// It generalizes the teacher's store.ErrNotFound struct-error pattern to
// the full code/status/phase shape the matching pipeline needs.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the stable error codes from spec.md §7.
type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeJobVectorsMissing    Code = "JOB_VECTORS_MISSING"
	CodeUserVectorsMissing   Code = "USER_VECTORS_MISSING"
	CodeJobNotFound          Code = "JOB_NOT_FOUND"
	CodeUnprocessableWeights Code = "UNPROCESSABLE_WEIGHTS"
	CodeStoreFailure         Code = "STORE_FAILURE"
	CodeLLMFailure           Code = "LLM_FAILURE"
	CodeEmbeddingFailure     Code = "EMBEDDING_FAILURE"
	CodeInvalidVector        Code = "INVALID_VECTOR"
	CodeInternal             Code = "INTERNAL"
)

var statusByCode = map[Code]int{
	CodeValidation:           http.StatusBadRequest,
	CodeUnauthorized:         http.StatusUnauthorized,
	CodeJobVectorsMissing:    http.StatusNotFound,
	CodeUserVectorsMissing:   http.StatusNotFound,
	CodeJobNotFound:          http.StatusNotFound,
	CodeUnprocessableWeights: http.StatusUnprocessableEntity,
	CodeStoreFailure:         http.StatusBadGateway,
	CodeLLMFailure:           http.StatusBadGateway,
	CodeEmbeddingFailure:     http.StatusBadGateway,
	CodeInvalidVector:        http.StatusBadRequest,
	CodeInternal:             http.StatusInternalServerError,
}

// Error is the typed error carried from the domain layer to the gateway.
type Error struct {
	Code    Code
	Message string
	Phase   string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code for this error's code.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a bare domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a domain code to an underlying error.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithPhase returns a copy of e tagged with a phase (e.g. "fetch.job",
// "query.domain", "upsert") for STORE_FAILURE-class errors.
func (e *Error) WithPhase(phase string) *Error {
	cp := *e
	cp.Phase = phase
	return &cp
}

// WithDetails returns a copy of e with additional structured detail fields.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// As extracts an *Error from err, if present anywhere in its chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// StatusFor returns the HTTP status for err: the domain status if err (or
// something it wraps) is an *Error, or 500 otherwise.
func StatusFor(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}

// CodeFor returns the domain code for err, or CodeInternal otherwise.
func CodeFor(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}
