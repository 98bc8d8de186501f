package index

import "github.com/viant/sqlite-kd/point"

// Index defines a static nearest-neighbour index with basic lifecycle methods.
type Index interface {
	// Build constructs the index from records over the ordered dimensions.
	// Every record must provide a value for every dimension.
	Build(dims []string, records []point.Record) error

	// Nearest returns the closest record admitted by the query, or nil when
	// none qualifies.
	Nearest(q Query) (*Match, error)

	// Dimensions returns the ordered dimension names the index was built with.
	Dimensions() []string

	// Len returns the number of indexed records.
	Len() int

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary reconstructs the index from a serialized byte slice.
	UnmarshalBinary(data []byte) error
}

// Query describes a radius-bounded nearest-neighbour lookup.
type Query struct {
	// Position is the query location keyed by dimension name.
	Position map[string]float64
	// MaxDistance is the search radius; it must be positive.
	MaxDistance float64
	// Weights divides each axis difference; omitted dimensions use 1.
	Weights map[string]float64
	// SelfID excludes the record with this ID. Empty disables exclusion.
	SelfID string
}

// Match is the record selected by a query.
type Match struct {
	ID       string
	Payload  string
	Position map[string]float64
	Distance float64
}

// NewMatch builds a Match from a record and its distance.
func NewMatch(r point.Record, distance float64) *Match {
	return &Match{ID: r.ID, Payload: r.Payload, Position: r.Position, Distance: distance}
}
