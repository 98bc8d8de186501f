package nnutil

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/index/kdtree"
	"github.com/viant/sqlite-kd/logging"
	"github.com/viant/sqlite-kd/point"
)

// Finder answers nearest-neighbour questions about the records of a points
// table. The k-d tree is built on first use and reused until Reset.
type Finder struct {
	DB          *sql.DB
	Source      string
	Dimensions  []string
	Weights     map[string]float64
	Radius      float64
	Parallelism int
	Logger      *logging.Logger

	mu    sync.Mutex
	store *point.SQLiteStore
	idx   *kdtree.Index
}

// Pair is a record and its nearest neighbour. Match is nil when no other
// record lies within the radius.
type Pair struct {
	ID    string
	Match *index.Match
}

// NewFinder constructs a Finder over source.
func NewFinder(db *sql.DB, source string, dims []string, radius float64) (*Finder, error) {
	if db == nil {
		return nil, fmt.Errorf("nnutil: db is nil")
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("nnutil: dimensions are required")
	}
	return &Finder{DB: db, Source: source, Dimensions: dims, Radius: radius}, nil
}

func (f *Finder) logger() *logging.Logger {
	if f.Logger == nil {
		return logging.NoopLogger()
	}
	return f.Logger
}

func (f *Finder) parallelism() int {
	if f.Parallelism > 0 {
		return f.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// Store returns the backing points store.
func (f *Finder) Store() (*point.SQLiteStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeLocked()
}

func (f *Finder) storeLocked() (*point.SQLiteStore, error) {
	if f.store != nil {
		return f.store, nil
	}
	if f.DB == nil {
		return nil, fmt.Errorf("nnutil: DB is nil on Finder")
	}
	s, err := point.NewSQLiteStore(f.DB, f.Source)
	if err != nil {
		return nil, err
	}
	f.store = s
	return s, nil
}

// Index returns the tree over the current records, building it when needed.
func (f *Finder) Index(ctx context.Context) (*kdtree.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx != nil {
		return f.idx, nil
	}
	store, err := f.storeLocked()
	if err != nil {
		return nil, err
	}
	records, err := store.Records(ctx)
	if err != nil {
		return nil, err
	}
	idx := kdtree.New(kdtree.WithBuildParallelism(f.parallelism()))
	started := time.Now()
	err = idx.Build(f.Dimensions, records)
	f.logger().WithSource(store.Table()).LogBuild(ctx, "kdtree", len(records), time.Since(started), err)
	if err != nil {
		return nil, err
	}
	f.idx = idx
	return idx, nil
}

// Reset drops the built tree so the next query sees current records.
func (f *Finder) Reset() {
	f.mu.Lock()
	f.idx = nil
	f.mu.Unlock()
}

// Nearest returns the record closest to position within the radius.
func (f *Finder) Nearest(ctx context.Context, position map[string]float64) (*index.Match, error) {
	return f.query(ctx, position, "")
}

// NearestTo returns the nearest other record to the record with id. It
// returns nil when id is unknown or has no neighbour within the radius.
func (f *Finder) NearestTo(ctx context.Context, id string) (*index.Match, error) {
	store, err := f.Store()
	if err != nil {
		return nil, err
	}
	r, err := store.Get(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	return f.query(ctx, r.Position, r.ID)
}

func (f *Finder) query(ctx context.Context, position map[string]float64, self string) (*index.Match, error) {
	idx, err := f.Index(ctx)
	if err != nil {
		return nil, err
	}
	m, err := idx.Nearest(index.Query{Position: position, MaxDistance: f.Radius, Weights: f.Weights, SelfID: self})
	matchID, distance := "", 0.0
	if m != nil {
		matchID, distance = m.ID, m.Distance
	}
	f.logger().LogSearch(ctx, self, matchID, distance, err)
	return m, err
}

// Pairs returns every record with its nearest neighbour, in store order.
// Queries run concurrently against the immutable tree.
func (f *Finder) Pairs(ctx context.Context) ([]Pair, error) {
	idx, err := f.Index(ctx)
	if err != nil {
		return nil, err
	}
	store, err := f.Store()
	if err != nil {
		return nil, err
	}
	records, err := store.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Pair, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism())
	for i, r := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := idx.Nearest(index.Query{Position: r.Position, MaxDistance: f.Radius, Weights: f.Weights, SelfID: r.ID})
			if err != nil {
				return fmt.Errorf("nnutil: nearest of %q: %w", r.ID, err)
			}
			out[i] = Pair{ID: r.ID, Match: m}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
