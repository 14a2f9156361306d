// Package store holds the error values shared by every storage adapter.
package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate")
	// ErrConditionFailed is returned when a conditional write matched no row.
	ErrConditionFailed = errors.New("condition failed")
	// ErrUnavailable wraps transient store failures. Callers report
	// "try again" and abandon the action.
	ErrUnavailable = errors.New("store unavailable")
)
