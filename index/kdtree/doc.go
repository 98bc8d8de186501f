// Package kdtree adapts the static k-d tree to the index.Index API. Blobs are
// zstd-compressed so large point sets persist compactly in SQLite.
package kdtree
