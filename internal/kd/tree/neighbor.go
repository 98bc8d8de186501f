package tree

// Neighbor describes the match returned by a nearest-neighbour search.
type Neighbor[T any] struct {
	Node     *Node[T]
	Distance float64
}

// ID returns the matched point identifier.
func (n *Neighbor[T]) ID() string { return n.Node.id }

// Value returns the matched payload.
func (n *Neighbor[T]) Value() T { return n.Node.value }

type candidate[T any] struct {
	node     *Node[T]
	distance float64
}
