package point

import (
	"database/sql"
	"fmt"
)

// DefaultTable is the points table used when none is configured.
const DefaultTable = "points"

const pointsSchema = `
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    position TEXT NOT NULL,
    payload TEXT
);
`

// EnsureSchema creates the points table in the provided database if it does
// not already exist. Table names are interpolated; callers must pass trusted
// identifiers.
func EnsureSchema(db *sql.DB, table string) error {
	if table == "" {
		table = DefaultTable
	}
	_, err := db.Exec(fmt.Sprintf(pointsSchema, table))
	return err
}
