package storage

import "errors"

var (
	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid memory record")

	// ErrClosed is returned by drivers used after Close.
	ErrClosed = errors.New("storage driver closed")
)

// ErrStorage wraps driver failures surfaced by the memory layer.
var ErrStorage = errors.New("memory storage failed")
