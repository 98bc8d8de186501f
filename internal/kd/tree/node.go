package tree

// Node is an immutable k-d tree element holding the median point of its subtree.
type Node[T any] struct {
	axis        int
	coordinates []float64
	id          string
	value       T
	left        *Node[T]
	right       *Node[T]
}

// Axis returns the split axis of this node.
func (n *Node[T]) Axis() int { return n.axis }

// Coordinates returns the cached coordinates of the stored point, ordered by axis.
// The returned slice must not be modified.
func (n *Node[T]) Coordinates() []float64 { return n.coordinates }

// ID returns the identifier of the stored point, or "" when it has none.
func (n *Node[T]) ID() string { return n.id }

// Value returns the stored payload.
func (n *Node[T]) Value() T { return n.value }

// Left returns the subtree with coordinate[axis] <= this node's, or nil.
func (n *Node[T]) Left() *Node[T] { return n.left }

// Right returns the subtree with coordinate[axis] >= this node's, or nil.
func (n *Node[T]) Right() *Node[T] { return n.right }

// IsLeaf reports whether the node has no children.
func (n *Node[T]) IsLeaf() bool { return n.left == nil && n.right == nil }
