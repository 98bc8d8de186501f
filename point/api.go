package point

import (
	"context"
)

// Record is a labeled point: a position keyed by dimension name plus an
// optional identifier and an opaque payload.
type Record struct {
	// ID identifies the record. It is also the self-exclusion key for
	// "find my nearest neighbour" queries.
	ID string

	// Position maps each dimension name (e.g. "lat", "long") to its coordinate.
	Position map[string]float64

	// Payload is the original record, kept as an opaque string (typically JSON).
	Payload string
}

// Store defines the application-level record store API. Records are read as
// a snapshot to build an immutable index; writes only take effect on rebuild.
type Store interface {
	// AddRecords inserts or replaces records and returns their IDs.
	AddRecords(ctx context.Context, records []Record) ([]string, error)

	// Records returns all records in insertion order.
	Records(ctx context.Context) ([]Record, error)

	// Get returns the record with the given ID, or nil when absent.
	Get(ctx context.Context, id string) (*Record, error)

	// Remove deletes the record with the given ID.
	Remove(ctx context.Context, id string) error
}
