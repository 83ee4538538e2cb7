package ir

import "errors"

// Sentinel errors shared by store implementations and their callers.
// Implementations wrap these with fmt.Errorf("...: %w", err); callers test
// with errors.Is.
var (
	// ErrNotFound is returned when a computation, group, algorithm or time
	// series does not exist.
	ErrNotFound = errors.New("not found")

	// ErrReferentialConflict is returned when a delete is refused because
	// other rows still depend on the record.
	ErrReferentialConflict = errors.New("referential integrity conflict")

	// ErrBadTimeSeries is returned when a time series cannot be created.
	ErrBadTimeSeries = errors.New("bad time series")
)
