package tree

import (
	"fmt"
	"math"
)

type searchOptions struct {
	weights Weights
	self    string
	tracer  Tracer
}

// SearchOption configures a nearest-neighbour search.
type SearchOption func(*searchOptions)

// WithWeights sets per-dimension weights. Dimensions not listed use 1.
func WithWeights(w Weights) SearchOption {
	return func(o *searchOptions) { o.weights = w }
}

// WithSelf excludes the point with the given identifier from the result.
// An empty id disables exclusion.
func WithSelf(id string) SearchOption {
	return func(o *searchOptions) { o.self = id }
}

// WithTracer receives the per-node decision log after the search completes.
func WithTracer(tr Tracer) SearchOption {
	return func(o *searchOptions) { o.tracer = tr }
}

// Nearest returns the closest point within maxDistance of a name-indexed
// query position, or nil when no point qualifies.
func (t *Tree[T]) Nearest(query map[string]float64, maxDistance float64, opts ...SearchOption) (*Neighbor[T], error) {
	coords, err := t.dims.Resolve("", query)
	if err != nil {
		return nil, err
	}
	return t.NearestCoordinates(coords, maxDistance, opts...)
}

// NearestCoordinates is Nearest with a query already ordered by axis.
func (t *Tree[T]) NearestCoordinates(query []float64, maxDistance float64, opts ...SearchOption) (*Neighbor[T], error) {
	if !(maxDistance > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidDistance, maxDistance)
	}
	if len(query) != t.dims.Len() {
		return nil, fmt.Errorf("%w: query has %d coordinates, want %d", ErrMissingDimension, len(query), t.dims.Len())
	}
	for i, v := range query {
		if math.IsNaN(v) {
			return nil, &DimensionError{Dimension: t.dims.Name(i), cause: ErrMissingDimension}
		}
	}
	o := &searchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	weights, err := o.weights.Resolve(t.dims)
	if err != nil {
		return nil, err
	}
	if t.root == nil {
		return nil, nil
	}
	s := &searcher[T]{
		query:       query,
		weights:     weights,
		limits:      make([]float64, len(weights)),
		maxDistance: maxDistance,
		self:        o.self,
		trace:       o.tracer != nil,
	}
	for d, w := range weights {
		s.limits[d] = maxDistance / w
	}
	best, ok := s.search(t.root, 0)
	if o.tracer != nil {
		for _, e := range s.events {
			e.Axis = t.dims.Name(e.axis)
			o.tracer.Trace(e)
		}
	}
	if !ok {
		return nil, nil
	}
	return &Neighbor[T]{Node: best.node, Distance: best.distance}, nil
}

type searcher[T any] struct {
	query       []float64
	weights     []float64
	limits      []float64
	maxDistance float64
	self        string
	trace       bool
	events      []Event
}

func (s *searcher[T]) record(kind EventKind, n *Node[T], depth int, distance float64) {
	if !s.trace {
		return
	}
	s.events = append(s.events, Event{Kind: kind, Depth: depth, ID: n.id, Distance: distance, axis: n.axis})
}

// search returns the best in-range candidate of the subtree rooted at n.
// Candidates are compared in the order self, left, right; ties keep the first.
func (s *searcher[T]) search(n *Node[T], depth int) (candidate[T], bool) {
	var (
		candidates [3]candidate[T]
		count      int
	)
	switch {
	case s.self != "" && n.id == s.self:
		s.record(EventSelfExcluded, n, depth, 0)
	case s.admits(n):
		d := Distance(s.query, n.coordinates, s.weights)
		s.record(EventAdmitted, n, depth, d)
		candidates[count] = candidate[T]{node: n, distance: d}
		count++
	default:
		s.record(EventRejected, n, depth, 0)
	}

	split := n.coordinates[n.axis]
	lower := s.query[n.axis] - s.limits[n.axis]
	upper := s.query[n.axis] + s.limits[n.axis]
	if n.left != nil {
		if split >= lower {
			if c, ok := s.search(n.left, depth+1); ok {
				candidates[count] = c
				count++
			}
		} else {
			s.record(EventPrunedLeft, n, depth, 0)
		}
	}
	if n.right != nil {
		if split <= upper {
			if c, ok := s.search(n.right, depth+1); ok {
				candidates[count] = c
				count++
			}
		} else {
			s.record(EventPrunedRight, n, depth, 0)
		}
	}

	var (
		best  candidate[T]
		found bool
	)
	for _, c := range candidates[:count] {
		if c.distance > s.maxDistance {
			s.record(EventOutOfRange, c.node, depth, c.distance)
			continue
		}
		if !found || c.distance < best.distance {
			best = c
			found = true
		}
	}
	if found {
		s.record(EventSelected, best.node, depth, best.distance)
	}
	return best, found
}

func (s *searcher[T]) admits(n *Node[T]) bool {
	for d, q := range s.query {
		if math.Abs(q-n.coordinates[d]) > s.limits[d] {
			return false
		}
	}
	return true
}
