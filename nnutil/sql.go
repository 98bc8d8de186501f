// Package nnutil offers higher-level helpers on top of the points store, the
// k-d tree index and kdnn virtual tables.
package nnutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/point"
)

// MatchNearest queries the kdnn virtual table for the record nearest to
// position. An empty self disables self exclusion. It returns nil when no
// record lies within radius. Match.Position is left empty.
func MatchNearest(ctx context.Context, db *sql.DB, virtualTable string, position map[string]float64, radius float64, self string) (*index.Match, error) {
	if db == nil {
		return nil, fmt.Errorf("nnutil: db is nil")
	}
	query, err := point.EncodePosition(position)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT id, distance, payload FROM %s WHERE query MATCH ? AND radius = ?", virtualTable)
	args := []interface{}{query, radius}
	if self != "" {
		stmt += " AND self = ?"
		args = append(args, self)
	}
	var m index.Match
	var payload sql.NullString
	err = db.QueryRowContext(ctx, stmt, args...).Scan(&m.ID, &m.Distance, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Payload = payload.String
	return &m, nil
}
