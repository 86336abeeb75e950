package apperr

import "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Additional context for message templating
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error with metadata for message templating.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons. Matching is by code only, so any
// *Error carrying the same code satisfies errors.Is(err, ErrNotFound).
var (
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrInvalidState      = New(CodeInvalidState, "invalid state")
	ErrInvalidTransition = New(CodeInvalidTransition, "invalid transition")
	ErrForbidden         = New(CodeForbidden, "forbidden")
	ErrUnauthenticated   = New(CodeUnauthenticated, "authentication required")
	ErrCapacityExceeded  = New(CodeCapacityExceeded, "no slots available")
	ErrAlreadyRegistered = New(CodeAlreadyRegistered, "already registered")
	ErrAlreadyCancelled  = New(CodeAlreadyCancelled, "already cancelled")
	ErrConflict          = New(CodeConflict, "conflict")
	ErrInvalidArgument   = New(CodeInvalidArgument, "invalid argument")
)

// CodeOf extracts the code of the first *Error in err's chain.
// Errors outside the taxonomy report CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// As returns the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Invalid is shorthand for an INVALID_ARGUMENT error naming the bad field.
func Invalid(field, message string) *Error {
	return WithMetadata(CodeInvalidArgument, message, map[string]string{"Field": field})
}
