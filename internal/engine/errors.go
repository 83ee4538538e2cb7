package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/compgroup/internal/ir"
)

// RunError represents an error detected while reconciling one group
// computation.
//
// Run errors include:
//   - Group not found: the computation's bound group does not resolve
//   - Archive failed: disposed computations could not be exported
//   - Persist failed: the store rejected a write
//
// Only persist failures stop the run; the others end the current
// computation and the run moves on.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// CompID identifies the group computation being reconciled.
	CompID ir.Key

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeGroupNotFound indicates the bound group reference does not resolve.
	ErrCodeGroupNotFound RunErrorCode = "GROUP_NOT_FOUND"

	// ErrCodeArchiveFailed indicates the archive export failed.
	ErrCodeArchiveFailed RunErrorCode = "ARCHIVE_FAILED"

	// ErrCodePersistFailed indicates a store write failed.
	ErrCodePersistFailed RunErrorCode = "PERSIST_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s (comp=%d)", e.Code, e.Message, e.CompID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error { return e.Err }

// IsGroupNotFound returns true if the error is a group-not-found error.
// Uses errors.As to handle wrapped errors.
func IsGroupNotFound(err error) bool {
	return hasCode(err, ErrCodeGroupNotFound)
}

// IsArchiveError returns true if the error is an archive failure.
func IsArchiveError(err error) bool {
	return hasCode(err, ErrCodeArchiveFailed)
}

// IsPersistError returns true if the error is a persistence failure.
func IsPersistError(err error) bool {
	return hasCode(err, ErrCodePersistFailed)
}

func hasCode(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newGroupNotFoundError(compID, groupID ir.Key, err error) *RunError {
	return &RunError{
		Code:    ErrCodeGroupNotFound,
		CompID:  compID,
		Message: fmt.Sprintf("bound group %d does not resolve", groupID),
		Err:     err,
	}
}

func newArchiveError(compID ir.Key, path string, err error) *RunError {
	return &RunError{
		Code:    ErrCodeArchiveFailed,
		CompID:  compID,
		Message: fmt.Sprintf("cannot save %q", path),
		Err:     err,
	}
}

func newPersistError(compID ir.Key, what string, err error) *RunError {
	return &RunError{
		Code:    ErrCodePersistFailed,
		CompID:  compID,
		Message: what,
		Err:     err,
	}
}
