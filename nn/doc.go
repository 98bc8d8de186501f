// Package nn implements a SQLite virtual table answering radius-bounded
// nearest-neighbour queries over a points table with MATCH semantics.
//
//	CREATE VIRTUAL TABLE nearby USING kdnn(points, dimensions='lat,long', weights='lat=364000,long=288200');
//	SELECT id, distance FROM nearby WHERE query MATCH '{"lat":33.74,"long":-84.38}' AND radius = 500 AND self = 'A';
//
// Features:
//   - query accepts a JSON object, JSON array, CSV list, or float64 BLOB
//   - optional self-exclusion through the hidden self column
//   - k-d tree index persisted in kd_storage, cached across connections
//   - triggers on the points table invalidate the persisted and cached index
package nn
