package nn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/index/kdtree"
	"github.com/viant/sqlite-kd/internal/kd/tree"
	"github.com/viant/sqlite-kd/logging"
	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name kdnn tables are created with.
const ModuleName = "kdnn"

const (
	colID = iota
	colDistance
	colPayload
	colQuery
	colRadius
	colSelf
)

const (
	idxMatch = 1 << iota
	idxSelf
)

var registerInvalidateOnce sync.Once

// Module implements vtab.Module for the kdnn virtual table.
type Module struct {
	db     *sql.DB
	logger *logging.Logger
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the logger used for index builds and searches.
func WithLogger(l *logging.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// Table is a single kdnn virtual table bound to one points table.
type Table struct {
	db     *sql.DB
	dbName string
	name   string
	opts   tableOptions
	logger *logging.Logger

	prepareOnce sync.Once
	prepareErr  error

	dbPathOnce sync.Once
	dbPath     string
}

type row struct {
	rowid    int64
	id       string
	payload  string
	distance float64
}

// Cursor holds the at most one row a kdnn query produces.
type Cursor struct {
	table *Table
	rows  []row
	pos   int
}

// registered is the database the process-wide module is bound to.
var registered struct {
	sync.Mutex
	db *sql.DB
}

// Register registers the kdnn module and the kd_invalidate function with db.
// The driver keeps one module per process, bound to the first db: registering
// again with the same db is a no-op, with another db an error.
func Register(db *sql.DB, opts ...Option) error {
	if db == nil {
		return fmt.Errorf("kdnn: db is nil")
	}
	mod := &Module{db: db, logger: logging.NoopLogger()}
	for _, opt := range opts {
		opt(mod)
	}
	registered.Lock()
	defer registered.Unlock()
	switch registered.db {
	case nil:
	case db:
		return nil
	default:
		return fmt.Errorf("kdnn: module already registered with another *sql.DB")
	}
	registerInvalidateOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("kd_invalidate", 1, invalidateFunc)
	})
	if err := vtab.RegisterModule(db, ModuleName, mod); err != nil {
		return err
	}
	registered.db = db
	return nil
}

// invalidateFunc implements kd_invalidate(source TEXT) → INT.
func invalidateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return int64(0), nil
	}
	source, err := asString(args[0])
	if err != nil || source == "" {
		return int64(0), nil
	}
	return int64(InvalidateCache(source)), nil
}

// Create declares the table schema; storage and triggers are created on first query.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args, "CREATE")
}

// Connect attaches to an existing kdnn table.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args, "CONNECT")
}

func (m *Module) connect(ctx vtab.Context, args []string, op string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("kdnn: %s expects a points table and dimensions, got %d args", op, len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("kdnn: EnableConstraintSupport failed: %w", err)
	}
	opts, err := parseTableOptions(args[3:])
	if err != nil {
		return nil, err
	}
	dims, err := tree.NewDimensions(opts.dimensions...)
	if err != nil {
		return nil, fmt.Errorf("kdnn: %w", err)
	}
	if _, err := tree.Weights(opts.weights).Resolve(dims); err != nil {
		return nil, fmt.Errorf("kdnn: %w", err)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(id TEXT, distance REAL, payload TEXT, query HIDDEN, radius HIDDEN, self HIDDEN)", args[2])); err != nil {
		return nil, err
	}
	return &Table{
		db:     m.db,
		dbName: args[1],
		name:   args[2],
		opts:   opts,
		logger: m.logger.WithSource(opts.source),
	}, nil
}

// BestIndex requires query MATCH and radius = and optionally pushes self =.
func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	var queryC, radiusC, selfC *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colQuery && (c.Op == vtab.OpMATCH || c.Op == vtab.OpEQ):
			queryC = c
		case c.Column == colRadius && c.Op == vtab.OpEQ:
			radiusC = c
		case c.Column == colSelf && c.Op == vtab.OpEQ:
			selfC = c
		}
	}
	if queryC == nil || radiusC == nil {
		return fmt.Errorf("kdnn: query MATCH and radius constraints are required")
	}
	queryC.ArgIndex, queryC.Omit = 0, true
	radiusC.ArgIndex, radiusC.Omit = 1, true
	info.IdxNum = idxMatch
	if selfC != nil {
		selfC.ArgIndex, selfC.Omit = 2, true
		info.IdxNum |= idxSelf
	}
	return nil
}

// Open allocates a new cursor.
func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }

// Disconnect cleans up per-connection resources.
func (t *Table) Disconnect() error { return nil }

// Destroy keeps kd_storage; the persisted index is shared by every kdnn table on the source.
func (t *Table) Destroy() error { return nil }

func (t *Table) kdOptions() []kdtree.Option {
	opts := []kdtree.Option{kdtree.WithBuildParallelism(t.opts.buildParallelism())}
	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		opts = append(opts, kdtree.WithTracer(t.logger.Tracer()))
	}
	return opts
}

// Filter runs the nearest-neighbour search.
func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows, c.pos = nil, 0
	if idxNum&idxMatch == 0 || len(vals) < 2 {
		return fmt.Errorf("kdnn: unsupported query plan")
	}
	if vals[0] == nil || vals[1] == nil {
		return fmt.Errorf("kdnn: query and radius arguments are required")
	}
	t := c.table
	ctx := context.Background()
	position, err := decodeQuery(vals[0], t.opts.dimensions)
	if err != nil {
		return err
	}
	radius, err := asFloat(vals[1])
	if err != nil {
		return err
	}
	var self string
	if idxNum&idxSelf != 0 && len(vals) > 2 {
		if self, err = asString(vals[2]); err != nil {
			return err
		}
	}

	idx, err := t.ensureIndex(ctx)
	if err != nil {
		return err
	}
	match, err := idx.Nearest(index.Query{
		Position:    position,
		MaxDistance: radius,
		Weights:     t.opts.weights,
		SelfID:      self,
	})
	if match == nil {
		t.logger.LogSearch(ctx, self, "", 0, err)
	} else {
		t.logger.LogSearch(ctx, self, match.ID, match.Distance, err)
	}
	if err != nil || match == nil {
		return err
	}
	rid, err := t.lookupRow(ctx, match.ID)
	if err != nil {
		return err
	}
	c.rows = []row{{rowid: rid, id: match.ID, payload: match.Payload, distance: match.Distance}}
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of a column in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("kdnn: Column out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	r := c.rows[c.pos]
	switch col {
	case colID:
		return r.id, nil
	case colDistance:
		return r.distance, nil
	case colPayload:
		return r.payload, nil
	case colQuery, colRadius, colSelf:
		return nil, nil
	}
	return nil, fmt.Errorf("kdnn: unsupported column %d", col)
}

// Rowid returns the rowid of the match in the points table.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return 0, fmt.Errorf("kdnn: Rowid out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	return c.rows[c.pos].rowid, nil
}

// Close releases resources.
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }
