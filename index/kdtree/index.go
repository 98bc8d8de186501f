package kdtree

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/internal/kd/tree"
	"github.com/viant/sqlite-kd/point"
)

// Magic tags blobs produced by MarshalBinary.
const Magic = "KDT1"

// EncodeAll/DecodeAll are safe for concurrent use on shared coders.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Index implements index.Index on a static k-d tree.
type Index struct {
	tree        *tree.Tree[point.Record]
	records     []point.Record
	parallelism int
	tracer      tree.Tracer
}

// Option configures an Index.
type Option func(*Index)

// WithBuildParallelism builds independent subtrees on up to n goroutines.
func WithBuildParallelism(n int) Option {
	return func(i *Index) { i.parallelism = n }
}

// WithTracer attaches a search decision tracer to every query.
func WithTracer(tr tree.Tracer) Option {
	return func(i *Index) { i.tracer = tr }
}

// New constructs an empty Index.
func New(opts ...Option) *Index {
	i := &Index{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Build constructs the tree; the records are kept in input order for persistence.
func (i *Index) Build(dims []string, records []point.Record) error {
	d, err := tree.NewDimensions(dims...)
	if err != nil {
		return fmt.Errorf("kdtree: %w", err)
	}
	points := make([]tree.Point[point.Record], len(records))
	for j, r := range records {
		points[j] = tree.Point[point.Record]{ID: r.ID, Coordinates: r.Position, Value: r}
	}
	b := &tree.Builder[point.Record]{Parallelism: i.parallelism}
	t, err := b.Build(points, d)
	if err != nil {
		return fmt.Errorf("kdtree: %w", err)
	}
	i.tree = t
	i.records = append([]point.Record(nil), records...)
	return nil
}

// Nearest runs the pruned tree search.
func (i *Index) Nearest(q index.Query) (*index.Match, error) {
	if i.tree == nil {
		return nil, nil
	}
	opts := []tree.SearchOption{tree.WithWeights(q.Weights), tree.WithSelf(q.SelfID)}
	if i.tracer != nil {
		opts = append(opts, tree.WithTracer(i.tracer))
	}
	n, err := i.tree.Nearest(q.Position, q.MaxDistance, opts...)
	if err != nil {
		return nil, fmt.Errorf("kdtree: %w", err)
	}
	if n == nil {
		return nil, nil
	}
	return index.NewMatch(n.Value(), n.Distance), nil
}

// Dimensions returns the ordered dimension names.
func (i *Index) Dimensions() []string {
	if i.tree == nil {
		return nil
	}
	return i.tree.Dimensions().Names()
}

// Len returns the number of records.
func (i *Index) Len() int { return len(i.records) }

// Height returns the tree height.
func (i *Index) Height() int {
	if i.tree == nil {
		return 0
	}
	return i.tree.Height()
}

// MarshalBinary stores Magic followed by the zstd-compressed record encoding.
// The tree itself is rebuilt on load; the build is deterministic.
func (i *Index) MarshalBinary() ([]byte, error) {
	if i.tree == nil {
		return nil, errors.New("kdtree: index not built")
	}
	body, err := index.EncodeRecords(i.Dimensions(), i.records)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(body, []byte(Magic)), nil
}

// UnmarshalBinary decompresses and rebuilds the tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	if index.Magic(data) != Magic {
		return errors.New("kdtree: invalid data")
	}
	body, err := decoder.DecodeAll(data[len(Magic):], nil)
	if err != nil {
		return fmt.Errorf("kdtree: decompress: %w", err)
	}
	dims, records, err := index.DecodeRecords(body)
	if err != nil {
		return err
	}
	return i.Build(dims, records)
}

var _ index.Index = (*Index)(nil)
