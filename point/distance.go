package point

import (
	"fmt"

	"github.com/viant/sqlite-kd/internal/kd/tree"
)

// WeightedDistance computes (Σ((a[d]-b[d])/w[d])²)^(1/K). A nil weights slice
// means unit weights. It returns an error if lengths differ or a weight is
// not positive.
func WeightedDistance(a, b, weights []float64) (float64, error) {
	w, err := checkArgs(a, b, weights)
	if err != nil {
		return 0, err
	}
	return tree.Distance(a, b, w), nil
}

// Within reports whether b passes the bounding-box admission test around a
// and lies within maxDistance under WeightedDistance.
func Within(a, b, weights []float64, maxDistance float64) (bool, error) {
	if !(maxDistance > 0) {
		return false, fmt.Errorf("%w: got %v", tree.ErrInvalidDistance, maxDistance)
	}
	w, err := checkArgs(a, b, weights)
	if err != nil {
		return false, err
	}
	if !tree.Admits(a, b, w, maxDistance) {
		return false, nil
	}
	return tree.Distance(a, b, w) <= maxDistance, nil
}

func checkArgs(a, b, weights []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("point: distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return nil, fmt.Errorf("point: distance on empty coordinates")
	}
	if weights == nil {
		weights = make([]float64, len(a))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(a) {
		return nil, fmt.Errorf("point: weights dimension mismatch: %d vs %d", len(weights), len(a))
	}
	for i, w := range weights {
		if !(w > 0) {
			return nil, fmt.Errorf("%w: axis %d got %v", tree.ErrInvalidWeight, i, w)
		}
	}
	return weights, nil
}
