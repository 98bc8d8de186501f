package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDimension is returned when a point or query lacks a value for a configured dimension.
	ErrMissingDimension = errors.New("tree: missing dimension value")
	// ErrInvalidDistance is returned when the search radius is not a positive number.
	ErrInvalidDistance = errors.New("tree: max distance must be positive")
	// ErrInvalidWeight is returned when a dimension weight is not a positive number.
	ErrInvalidWeight = errors.New("tree: dimension weight must be positive")
	// ErrInvalidConfiguration is returned for an unusable dimension list.
	ErrInvalidConfiguration = errors.New("tree: invalid configuration")
)

// DimensionError reports the dimension (and point, when known) behind a failure.
//
// The sentinel cause can be matched with errors.Is.
type DimensionError struct {
	Dimension string
	ID        string
	cause     error
}

func (e *DimensionError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%v: %q (point %q)", e.cause, e.Dimension, e.ID)
	}
	return fmt.Sprintf("%v: %q", e.cause, e.Dimension)
}

func (e *DimensionError) Unwrap() error { return e.cause }
