package nn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/index/bruteforce"
	"github.com/viant/sqlite-kd/index/kdtree"
	"github.com/viant/sqlite-kd/point"
)

// StorageTable holds persisted indices, one row per source and dimension list.
const StorageTable = "kd_storage"

// EnsureStorage creates the kd_storage table.
func EnsureStorage(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("kdnn: db is nil")
	}
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS kd_storage (
    source_table TEXT NOT NULL,
    dimensions   TEXT NOT NULL,
    kind         TEXT NOT NULL DEFAULT 'kdtree',
    "index"      BLOB,
    PRIMARY KEY (source_table, dimensions)
)`)
	return err
}

// StoredIndex describes one kd_storage row.
type StoredIndex struct {
	Source     string
	Dimensions []string
	Kind       string
	Empty      bool // the blob was cleared by a write to the source
}

// StoredIndexes lists the kd_storage rows of source ordered by dimensions.
func StoredIndexes(ctx context.Context, db *sql.DB, source string) ([]StoredIndex, error) {
	rows, err := db.QueryContext(ctx, `SELECT dimensions, kind, "index" IS NULL FROM kd_storage WHERE source_table = ? ORDER BY dimensions`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredIndex
	for rows.Next() {
		s := StoredIndex{Source: source}
		var dims string
		if err := rows.Scan(&dims, &s.Kind, &s.Empty); err != nil {
			return nil, err
		}
		s.Dimensions = splitList(dims)
		out = append(out, s)
	}
	return out, rows.Err()
}

// NewIndex returns an unbuilt index of kind: "brute" selects the linear scan,
// anything else the k-d tree.
func NewIndex(kind string, opts ...kdtree.Option) index.Index {
	if kind == kindBrute {
		return &bruteforce.Index{}
	}
	return kdtree.New(opts...)
}

// KindOf reports the kind name of idx.
func KindOf(idx index.Index) string {
	if _, ok := idx.(*bruteforce.Index); ok {
		return kindBrute
	}
	return kindKDTree
}

// EnsureTriggers installs AFTER INSERT/UPDATE/DELETE triggers on source that
// drop the persisted index and the cached trees.
func EnsureTriggers(ctx context.Context, db *sql.DB, source string) error {
	schema, table := splitQualified(source)
	trigBase := sanitizeName("trg_kdnn_" + table)
	if schema != "" {
		trigBase = schema + "." + trigBase
	}
	sourceLit := quoteLiteral(source)
	body := `UPDATE kd_storage SET "index" = NULL WHERE source_table = ` + sourceLit + `; SELECT kd_invalidate(` + sourceLit + `);`
	for _, event := range []struct{ suffix, op string }{
		{"ins", "INSERT"},
		{"upd", "UPDATE"},
		{"del", "DELETE"},
	} {
		stmt := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_%s AFTER %s ON %s BEGIN %s END;`, trigBase, event.suffix, event.op, table, body)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("kdnn: create %s trigger on %s: %w", event.op, source, err)
		}
	}
	return nil
}

// Prepare creates kd_storage, the points table and its invalidation triggers.
// Calling it before the first kdnn query keeps DDL out of the query path.
func Prepare(ctx context.Context, db *sql.DB, source string) error {
	if err := EnsureStorage(ctx, db); err != nil {
		return err
	}
	if _, err := point.NewSQLiteStore(db, source); err != nil {
		return err
	}
	return EnsureTriggers(ctx, db, source)
}

// LoadPersisted returns the stored index for source and dims, or false when
// none is stored, the blob is unreadable, or it holds another kind.
func LoadPersisted(ctx context.Context, db *sql.DB, source string, dims []string, kind string, opts ...kdtree.Option) (index.Index, bool, error) {
	var blob []byte
	err := db.QueryRowContext(ctx, `SELECT "index" FROM kd_storage WHERE source_table = ? AND dimensions = ?`, source, strings.Join(dims, ",")).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(blob) == 0 {
		return nil, false, nil
	}
	var idx index.Index
	switch index.Magic(blob) {
	case kdtree.Magic:
		idx = kdtree.New(opts...)
	case bruteforce.Magic:
		idx = &bruteforce.Index{}
	default:
		return nil, false, nil
	}
	if KindOf(idx) != kind {
		return nil, false, nil
	}
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, false, nil
	}
	if strings.Join(idx.Dimensions(), ",") != strings.Join(dims, ",") {
		return nil, false, nil
	}
	return idx, true, nil
}

// Persist stores the serialized index for source.
func Persist(ctx context.Context, db *sql.DB, source string, idx index.Index) error {
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT OR REPLACE INTO kd_storage(source_table, dimensions, kind, "index") VALUES(?, ?, ?, ?)`, source, strings.Join(idx.Dimensions(), ","), KindOf(idx), data)
	return err
}

// Rebuild reads every record of source, builds idx over dims and persists it.
func Rebuild(ctx context.Context, db *sql.DB, source string, dims []string, idx index.Index) error {
	store, err := point.NewSQLiteStore(db, source)
	if err != nil {
		return err
	}
	records, err := store.Records(ctx)
	if err != nil {
		return err
	}
	if err := idx.Build(dims, records); err != nil {
		return err
	}
	if err := EnsureStorage(ctx, db); err != nil {
		return err
	}
	return Persist(ctx, db, source, idx)
}

// ensureIndex loads or builds the in-memory index and persists it in kd_storage.
func (t *Table) ensureIndex(ctx context.Context) (index.Index, error) {
	t.prepareOnce.Do(func() { t.prepareErr = Prepare(ctx, t.db, t.opts.source) })
	if t.prepareErr != nil {
		return nil, t.prepareErr
	}

	kind := t.opts.resolveKind()
	key := cacheKey(t.cachedDbPath(ctx), t.opts.source, strings.Join(t.opts.dimensions, ",")+"|"+kind)
	slot := indexes.entry(key)
	if idx, _ := slot.current(); idx != nil {
		return idx, nil
	}
	slot.build.Lock()
	defer slot.build.Unlock()
	idx, gen := slot.current()
	if idx != nil {
		return idx, nil
	}

	idx, ok, err := LoadPersisted(ctx, t.db, t.opts.source, t.opts.dimensions, kind, t.kdOptions()...)
	if err != nil {
		return nil, err
	}
	if ok {
		slot.store(idx, gen)
		return idx, nil
	}

	store, err := point.NewSQLiteStore(t.db, t.opts.source)
	if err != nil {
		return nil, err
	}
	records, err := store.Records(ctx)
	if err != nil {
		return nil, err
	}
	built := NewIndex(kind, t.kdOptions()...)
	started := time.Now()
	err = built.Build(t.opts.dimensions, records)
	t.logger.LogBuild(ctx, kind, len(records), time.Since(started), err)
	if err != nil {
		return nil, err
	}
	// A write since gen was read makes this snapshot stale: answer from it
	// once, but neither cache nor persist it.
	if !slot.store(built, gen) {
		return built, nil
	}
	if err := Persist(ctx, t.db, t.opts.source, built); err != nil {
		t.logger.WarnContext(ctx, "index persist failed", "error", err)
	}
	return built, nil
}

// lookupRow resolves the source rowid of a record.
func (t *Table) lookupRow(ctx context.Context, id string) (int64, error) {
	q := fmt.Sprintf("SELECT rowid FROM %s WHERE id = ?", t.opts.source)
	var rid int64
	if err := t.db.QueryRowContext(ctx, q, id).Scan(&rid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return rid, nil
}

func resolveDbPath(ctx context.Context, db *sql.DB, dbName string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("kdnn: db is nil")
	}
	rows, err := db.QueryContext(ctx, `SELECT name, file FROM pragma_database_list`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	if dbName == "" {
		dbName = "main"
	}
	for rows.Next() {
		var name, file string
		if err := rows.Scan(&name, &file); err != nil {
			return "", err
		}
		if name != dbName {
			continue
		}
		if file == "" {
			return name, nil
		}
		return file, nil
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return dbName, nil
}

func (t *Table) cachedDbPath(ctx context.Context) string {
	t.dbPathOnce.Do(func() {
		path, err := resolveDbPath(ctx, t.db, t.dbName)
		if err != nil {
			t.logger.WarnContext(ctx, "database path lookup failed", "error", err)
			path = t.dbName
			if path == "" {
				path = "main"
			}
		}
		t.dbPath = path
	})
	return t.dbPath
}

func splitQualified(name string) (schema, table string) {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// sanitizeName converts a qualified name into a safe identifier for triggers.
func sanitizeName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}

// quoteLiteral returns a SQL string literal with single quotes escaped.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
