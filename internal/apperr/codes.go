// Package apperr provides the structured error type shared by every layer.
// Each failure carries a stable machine-readable Code plus a message, so the
// HTTP layer can pick a status and a localized text without string matching.
package apperr

import "net/http"

// Code is a machine-readable error kind.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeForbidden         Code = "FORBIDDEN"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeCapacityExceeded  Code = "CAPACITY_EXCEEDED"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeAlreadyCancelled  Code = "ALREADY_CANCELLED"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInternal          Code = "INTERNAL"
)

// HTTPStatus maps a code to the response status used by the API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeInvalidTransition, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeCapacityExceeded, CodeAlreadyRegistered, CodeAlreadyCancelled, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may retry the whole operation.
// Only storage-level conflicts qualify; everything else is terminal.
func (c Code) Retryable() bool {
	return c == CodeConflict
}
