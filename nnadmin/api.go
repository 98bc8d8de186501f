// Package nnadmin exposes index maintenance through the kd_admin virtual table.
package nnadmin

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viant/sqlite-kd/index/kdtree"
	"github.com/viant/sqlite-kd/logging"
	"github.com/viant/sqlite-kd/nn"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the name kd_admin tables are created with.
const ModuleName = "kd_admin"

// Module provides administrative operations via a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE kd_admin USING kd_admin(op);
//	SELECT op FROM kd_admin WHERE op MATCH 'points';          -- rebuild every stored index of points
//	SELECT op FROM kd_admin WHERE op MATCH 'points:lat,long'; -- rebuild one dimension list
//
// Optional arguments after op set the index kind and build parallelism:
//
//	CREATE VIRTUAL TABLE kd_brute USING kd_admin(op, index=brute);
//	CREATE VIRTUAL TABLE kd_fast USING kd_admin(op, parallel=auto);
//
// Returns a single row with op='reindexed:<count>' on success.
type Module struct {
	db     *sql.DB
	logger *logging.Logger
}

type Table struct {
	db       *sql.DB
	logger   *logging.Logger
	kind     string
	parallel int
}

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// registered is the database the process-wide module is bound to.
var registered struct {
	sync.Mutex
	db *sql.DB
}

// Register registers the kd_admin module. A nil logger discards output.
// Modules are registered once per process and stay bound to the first db;
// registering again with the same db is a no-op, with another db an error.
func Register(db *sql.DB, logger *logging.Logger) error {
	if db == nil {
		return fmt.Errorf("kd_admin: db is nil")
	}
	if logger == nil {
		logger = logging.NoopLogger()
	}
	registered.Lock()
	defer registered.Unlock()
	switch registered.db {
	case nil:
	case db:
		return nil
	default:
		return fmt.Errorf("kd_admin: module already registered with another *sql.DB")
	}
	if err := vtab.RegisterModule(db, ModuleName, &Module{db: db, logger: logger}); err != nil {
		return err
	}
	registered.db = db
	return nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Connect(ctx, args)
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("kd_admin: need at least 3 args")
	}
	table := &Table{db: m.db, logger: m.logger}
	for _, raw := range args[3:] {
		key, val, ok := strings.Cut(strings.TrimSpace(raw), "=")
		if !ok {
			continue
		}
		val = strings.Trim(strings.TrimSpace(val), `'"`)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "index":
			switch kind := strings.ToLower(val); kind {
			case "brute", "kdtree":
				table.kind = kind
			case "kd":
				table.kind = "kdtree"
			case "auto":
			default:
				return nil, fmt.Errorf("kd_admin: unknown index kind %q", val)
			}
		case "parallel":
			switch strings.ToLower(val) {
			case "auto":
				table.parallel = runtime.GOMAXPROCS(0)
			case "", "off":
			default:
				n, err := strconv.Atoi(val)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("kd_admin: invalid parallel %q", val)
				}
				table.parallel = n
			}
		}
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error           { return nil }
func (t *Table) Destroy() error              { return nil }

func (c *Cursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	target, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("kd_admin: MATCH expects a points table name as TEXT")
	}
	var opts []kdtree.Option
	if c.table.parallel > 0 {
		opts = append(opts, kdtree.WithBuildParallelism(c.table.parallel))
	}
	n, err := Reindex(context.Background(), c.table.db, target, c.table.kind, c.table.logger, opts...)
	if err != nil {
		return err
	}
	c.rows = []string{fmt.Sprintf("reindexed:%d", n)}
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("kd_admin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}

func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }

// Reindex rebuilds and persists indices for target, given as "source" or
// "source:dim1,dim2". Without explicit dimensions every dimension list stored
// in kd_storage for source is rebuilt. An empty kind keeps the kind each list
// was stored with, or the k-d tree for a new list; opts apply to k-d trees.
// Every list indexes the same rows, so the returned count is the number of
// records in source rather than a sum over lists.
func Reindex(ctx context.Context, db *sql.DB, target, kind string, logger *logging.Logger, opts ...kdtree.Option) (int, error) {
	if logger == nil {
		logger = logging.NoopLogger()
	}
	source, dimList, hasDims := strings.Cut(strings.TrimSpace(target), ":")
	source = strings.TrimSpace(source)
	if source == "" {
		return 0, fmt.Errorf("kd_admin: points table name is required")
	}
	if err := nn.EnsureStorage(ctx, db); err != nil {
		return 0, err
	}
	stored, err := nn.StoredIndexes(ctx, db, source)
	if err != nil {
		return 0, err
	}
	var lists []nn.StoredIndex
	if hasDims {
		want := nn.StoredIndex{Source: source, Dimensions: splitDims(dimList)}
		for _, s := range stored {
			if strings.Join(s.Dimensions, ",") == strings.Join(want.Dimensions, ",") {
				want.Kind = s.Kind
			}
		}
		lists = append(lists, want)
	} else {
		lists = stored
	}
	if len(lists) == 0 {
		return 0, fmt.Errorf("kd_admin: no stored index for %q; use MATCH '%s:<dimensions>'", source, source)
	}
	log := logger.WithSource(source)
	count := 0
	for _, list := range lists {
		listKind := list.Kind
		if kind != "" {
			listKind = kind
		}
		idx := nn.NewIndex(listKind, opts...)
		started := time.Now()
		err := nn.Rebuild(ctx, db, source, list.Dimensions, idx)
		log.LogBuild(ctx, nn.KindOf(idx), idx.Len(), time.Since(started), err)
		if err != nil {
			return 0, err
		}
		count = idx.Len()
	}
	nn.InvalidateCache(source)
	return count, nil
}

func splitDims(s string) []string {
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
