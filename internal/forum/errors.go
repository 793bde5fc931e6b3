package forum

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the acting user is not allowed to
	// perform the requested mutation
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when the target post or thread does not exist
	ErrNotFound = errors.New("not found")

	// ErrPostDeleted is returned when a mutation other than restore targets
	// a soft-deleted post
	ErrPostDeleted = errors.New("post is deleted")

	// ErrNotDeleted is returned when restore targets a post that is not
	// deleted
	ErrNotDeleted = errors.New("post is not deleted")
)

// DepthExceededError is returned when creating a reply would exceed the
// maximum nesting depth. The check runs before any persistence attempt.
type DepthExceededError struct {
	ParentID int64
	Depth    int
	Max      int
}

// Error implements the error interface
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("reply to post %d would reach depth %d, maximum is %d", e.ParentID, e.Depth, e.Max)
}

// RetrievalError is returned when a batched fetch fails, either a reply
// level during tree building or a category-expansion step. No partial result
// is returned alongside it.
type RetrievalError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// LookupError is returned when a post's thread or category cannot be
// resolved during authorization. Callers must treat it as a denial.
type LookupError struct {
	Kind string
	ID   int64
	Err  error
}

// Error implements the error interface
func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %d lookup failed: %v", e.Kind, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Unwrap returns the underlying error
func (e *LookupError) Unwrap() error {
	return e.Err
}
