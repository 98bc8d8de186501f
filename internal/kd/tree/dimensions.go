package tree

import (
	"fmt"
	"math"
	"strings"
)

// Dimensions is an ordered list of dimension names. Names are mapped to
// integer axes once so the recursive build and search only index slices.
type Dimensions struct {
	names []string
	index map[string]int
}

// NewDimensions validates and indexes the provided dimension names.
func NewDimensions(names ...string) (Dimensions, error) {
	if len(names) == 0 {
		return Dimensions{}, fmt.Errorf("%w: dimensions must not be empty", ErrInvalidConfiguration)
	}
	d := Dimensions{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			return Dimensions{}, fmt.Errorf("%w: dimension %d has an empty name", ErrInvalidConfiguration, i)
		}
		if _, ok := d.index[name]; ok {
			return Dimensions{}, fmt.Errorf("%w: duplicate dimension %q", ErrInvalidConfiguration, name)
		}
		d.names[i] = name
		d.index[name] = i
	}
	return d, nil
}

// Len returns the number of dimensions (K).
func (d Dimensions) Len() int { return len(d.names) }

// Name returns the dimension name for an axis.
func (d Dimensions) Name(axis int) string { return d.names[axis] }

// Names returns a copy of the ordered dimension names.
func (d Dimensions) Names() []string {
	return append([]string(nil), d.names...)
}

// Index returns the axis of a dimension name.
func (d Dimensions) Index(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Resolve converts a name-indexed position into coordinates ordered by axis.
// id is only used for error reporting.
func (d Dimensions) Resolve(id string, position map[string]float64) ([]float64, error) {
	if len(d.names) == 0 {
		return nil, fmt.Errorf("%w: dimensions must not be empty", ErrInvalidConfiguration)
	}
	coords := make([]float64, len(d.names))
	for i, name := range d.names {
		v, ok := position[name]
		if !ok || math.IsNaN(v) {
			return nil, &DimensionError{Dimension: name, ID: id, cause: ErrMissingDimension}
		}
		coords[i] = v
	}
	return coords, nil
}

// Weights is a per-dimension divisor applied to axis differences. Omitted
// dimensions default to 1.
type Weights map[string]float64

// Resolve converts weights into a slice ordered by axis, validating that every
// weight is positive and refers to a known dimension.
func (w Weights) Resolve(dims Dimensions) ([]float64, error) {
	out := make([]float64, dims.Len())
	for i := range out {
		out[i] = 1
	}
	for name, v := range w {
		axis, ok := dims.Index(name)
		if !ok {
			return nil, &DimensionError{Dimension: name, cause: fmt.Errorf("%w: unknown dimension", ErrInvalidWeight)}
		}
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, &DimensionError{Dimension: name, cause: fmt.Errorf("%w: got %v", ErrInvalidWeight, v)}
		}
		out[axis] = v
	}
	return out, nil
}
