package api

import (
	"errors"
	"fmt"

	"github.com/threadmill/threadmill/internal/forum"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// Application-level JSON-RPC error codes
const (
	ErrCodeServer        = -32000
	ErrCodeNotFound      = -32001
	ErrCodeForbidden     = -32002
	ErrCodeInvalidState  = -32003
	ErrCodeDepthExceeded = -32004
)

// CodeForError maps forum errors to JSON-RPC error codes. Lookup failures
// map to the forbidden code: authorization fails closed rather than leaking
// the distinction to the caller.
func CodeForError(err error) (int, string) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message
	}

	var depthErr *forum.DepthExceededError
	if errors.As(err, &depthErr) {
		return ErrCodeDepthExceeded, "Reply depth limit exceeded"
	}

	var lookupErr *forum.LookupError
	if errors.As(err, &lookupErr) {
		return ErrCodeForbidden, "Forbidden"
	}

	switch {
	case errors.Is(err, forum.ErrForbidden):
		return ErrCodeForbidden, "Forbidden"
	case errors.Is(err, forum.ErrNotFound):
		return ErrCodeNotFound, "Not found"
	case errors.Is(err, forum.ErrPostDeleted), errors.Is(err, forum.ErrNotDeleted):
		return ErrCodeInvalidState, "Invalid post state"
	}

	return ErrCodeServer, "Server error"
}
