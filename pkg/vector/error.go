package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when two vectors, or a vector and a
	// store, disagree on dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidBlob is returned when a serialized vector cannot be decoded.
	ErrInvalidBlob = errors.New("invalid embedding encoding")
)
