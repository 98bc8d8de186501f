// Package index defines a minimal abstraction for static nearest-neighbour
// indexes that are built from point records, queried for the single closest
// record within a radius, and serialized for persistence.
// Implementations in this module include a k-d tree and a brute-force baseline.
package index
