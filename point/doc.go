// Package point defines the record model and SQLite-backed utilities used by
// this project. It includes:
//   - Record model and Store interface
//   - SQLiteStore: durable storage for named-dimension point records
//   - Schema helpers to create a points table
//   - Coordinate/position encodings and the weighted distance metric
package point
