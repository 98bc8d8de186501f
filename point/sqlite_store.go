package point

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteStore implements Store on a SQLite table with columns
// id, position (JSON object), and payload.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore creates a SQLite-backed Store. It ensures the points table
// exists in the provided database.
func NewSQLiteStore(db *sql.DB, table string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("point: db is nil")
	}
	if table == "" {
		table = DefaultTable
	}
	if err := EnsureSchema(db, table); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Table returns the backing table name.
func (s *SQLiteStore) Table() string { return s.table }

// AddRecords upserts records in a single transaction. Record.ID must be set.
func (s *SQLiteStore) AddRecords(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
INSERT INTO %s(id, position, payload) VALUES(?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  position = excluded.position,
  payload = excluded.payload`, s.table))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("point: Record.ID must be set in AddRecords")
		}
		position, err := EncodePosition(r.Position)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, position, r.Payload); err != nil {
			return nil, err
		}
		ids = append(ids, r.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Records returns a snapshot of all records ordered by rowid.
func (s *SQLiteStore) Records(ctx context.Context) ([]Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, position, payload FROM %s ORDER BY rowid`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single record, or nil when the ID is unknown.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, position, payload FROM %s WHERE id = ?`, s.table), id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Remove deletes a record by ID.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("point: Remove called with empty id")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r        Record
		position string
		payload  sql.NullString
	)
	if err := row.Scan(&r.ID, &position, &payload); err != nil {
		return nil, err
	}
	pos, err := DecodePosition(position)
	if err != nil {
		return nil, err
	}
	r.Position = pos
	r.Payload = payload.String
	return &r, nil
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
