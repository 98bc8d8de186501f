package tree

// Point is an input record for Build: a name-indexed position, an optional
// identifier used for self-exclusion, and an opaque value kept on the node.
type Point[T any] struct {
	ID          string
	Coordinates map[string]float64
	Value       T
}
