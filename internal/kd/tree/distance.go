package tree

import "math"

// Distance returns the weighted distance between a query and node coordinates:
//
//	(Σ_d ((query[d] - coords[d]) / weights[d])²)^(1/K)
//
// For K=2 this is the weighted Euclidean distance. For other K the root
// exponent stays 1/K.
func Distance(query, coords, weights []float64) float64 {
	var sum float64
	for d := range query {
		delta := (query[d] - coords[d]) / weights[d]
		sum += delta * delta
	}
	return math.Pow(sum, 1/float64(len(query)))
}

// Admits reports whether coords fall inside the per-axis bounding box of
// half-width maxDistance/weights[d] around the query.
func Admits(query, coords, weights []float64, maxDistance float64) bool {
	for d := range query {
		if math.Abs(query[d]-coords[d]) > maxDistance/weights[d] {
			return false
		}
	}
	return true
}
