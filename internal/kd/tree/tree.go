package tree

import (
	"cmp"
	"fmt"
	"math/bits"
	"slices"

	"golang.org/x/sync/errgroup"
)

// MaxHeight bounds the recursion depth of build and search. A median split
// yields height ceil(log2(n+1)), so the bound is never reached in practice.
const MaxHeight = 64

// minParallelBuild is the smallest sub-list worth handing to another goroutine.
const minParallelBuild = 1024

// Tree is a static k-d tree. It is built once by Build and never mutated, so
// concurrent searches are safe.
type Tree[T any] struct {
	root   *Node[T]
	dims   Dimensions
	size   int
	height int
}

// Builder configures tree construction.
type Builder[T any] struct {
	// IDSelector derives the point identifier. When nil, Point.ID is used.
	IDSelector func(point Point[T]) string
	// Parallelism builds independent subtrees on up to this many goroutines.
	// Values <= 1 build sequentially. The resulting tree is identical either way.
	Parallelism int
}

// Build constructs a tree with the default Builder.
func Build[T any](points []Point[T], dims Dimensions) (*Tree[T], error) {
	return (&Builder[T]{}).Build(points, dims)
}

type entry[T any] struct {
	seq    int
	coords []float64
	id     string
	value  T
}

// Build constructs a balanced tree splitting each sub-list on the median of
// the axis selected by depth (round-robin over dims). Sub-lists are sorted by
// axis value with ties broken by input order, so the build is deterministic.
func (b *Builder[T]) Build(points []Point[T], dims Dimensions) (*Tree[T], error) {
	if dims.Len() == 0 {
		return nil, fmt.Errorf("%w: dimensions must not be empty", ErrInvalidConfiguration)
	}
	entries := make([]entry[T], len(points))
	for i, p := range points {
		id := p.ID
		if b.IDSelector != nil {
			id = b.IDSelector(p)
		}
		coords, err := dims.Resolve(id, p.Coordinates)
		if err != nil {
			return nil, err
		}
		entries[i] = entry[T]{seq: i, coords: coords, id: id, value: p.Value}
	}
	t := &Tree[T]{dims: dims, size: len(entries)}
	if len(entries) == 0 {
		return t, nil
	}
	forkDepth := 0
	if b.Parallelism > 1 {
		forkDepth = bits.Len(uint(b.Parallelism)) - 1
	}
	root, height, err := b.build(entries, 0, dims.Len(), forkDepth)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.height = height
	return t, nil
}

func (b *Builder[T]) build(entries []entry[T], depth, k, forkDepth int) (*Node[T], int, error) {
	if len(entries) == 0 {
		return nil, 0, nil
	}
	if depth >= MaxHeight {
		return nil, 0, fmt.Errorf("%w: tree height exceeds %d", ErrInvalidConfiguration, MaxHeight)
	}
	axis := depth % k
	slices.SortFunc(entries, func(a, b entry[T]) int {
		if c := cmp.Compare(a.coords[axis], b.coords[axis]); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	median := len(entries) / 2
	m := entries[median]
	node := &Node[T]{axis: axis, coordinates: m.coords, id: m.id, value: m.value}

	leftEntries, rightEntries := entries[:median], entries[median+1:]
	var leftHeight, rightHeight int
	if depth < forkDepth && len(entries) >= minParallelBuild {
		// Sub-lists are disjoint windows of entries.
		var g errgroup.Group
		g.Go(func() error {
			var err error
			node.left, leftHeight, err = b.build(leftEntries, depth+1, k, forkDepth)
			return err
		})
		g.Go(func() error {
			var err error
			node.right, rightHeight, err = b.build(rightEntries, depth+1, k, forkDepth)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, 0, err
		}
	} else {
		var err error
		if node.left, leftHeight, err = b.build(leftEntries, depth+1, k, forkDepth); err != nil {
			return nil, 0, err
		}
		if node.right, rightHeight, err = b.build(rightEntries, depth+1, k, forkDepth); err != nil {
			return nil, 0, err
		}
	}
	return node, 1 + max(leftHeight, rightHeight), nil
}

// Root returns the root node, or nil for an empty tree.
func (t *Tree[T]) Root() *Node[T] { return t.root }

// Len returns the number of stored points.
func (t *Tree[T]) Len() int { return t.size }

// Height returns the number of levels (0 for an empty tree).
func (t *Tree[T]) Height() int { return t.height }

// Dimensions returns the dimensions the tree was built with.
func (t *Tree[T]) Dimensions() Dimensions { return t.dims }

// Walk visits nodes in pre-order. Returning false from fn skips the node's children.
func (t *Tree[T]) Walk(fn func(node *Node[T], depth int) bool) {
	walk(t.root, 0, fn)
}

func walk[T any](n *Node[T], depth int, fn func(*Node[T], int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	walk(n.left, depth+1, fn)
	walk(n.right, depth+1, fn)
}
