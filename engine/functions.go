package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/viant/sqlite-kd/internal/kd/tree"
	"github.com/viant/sqlite-kd/point"
	sqlite "modernc.org/sqlite"
)

var registerOnce sync.Once

// RegisterFunctions registers kd_distance, kd_weighted_distance and kd_within
// with the driver so they are available on new connections opened after this
// call. Existing open connections will not see new functions.
//
//	kd_distance(a BLOB, b BLOB) REAL
//	kd_weighted_distance(a BLOB, b BLOB, weights BLOB) REAL
//	kd_within(a BLOB, b BLOB, max_distance REAL, weights BLOB) INTEGER
//
// Coordinates and weights are little-endian float64 BLOBs in dimension order.
func RegisterFunctions(_ *sql.DB) error {
	var err error
	registerOnce.Do(func() {
		if err = sqlite.RegisterDeterministicScalarFunction("kd_distance", 2, kdDistanceImpl); err != nil {
			return
		}
		if err = sqlite.RegisterDeterministicScalarFunction("kd_weighted_distance", 3, kdDistanceImpl); err != nil {
			return
		}
		err = sqlite.RegisterDeterministicScalarFunction("kd_within", 4, kdWithinImpl)
	})
	return err
}

func asCoordinates(arg driver.Value) ([]float64, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return point.DecodeCoordinates(v)
	default:
		return nil, fmt.Errorf("kd: unsupported argument type %T for coordinates; want BLOB", arg)
	}
}

func kdDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("kd_distance: expected 2 or 3 arguments, got %d", len(args))
	}
	a, b, w, err := coordinateArgs(args[0], args[1], args[2:]...)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return tree.Distance(a, b, w), nil
}

func kdWithinImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("kd_within: expected 4 arguments, got %d", len(args))
	}
	a, b, w, err := coordinateArgs(args[0], args[1], args[3])
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	var maxDistance float64
	switch v := args[2].(type) {
	case float64:
		maxDistance = v
	case int64:
		maxDistance = float64(v)
	default:
		return nil, fmt.Errorf("kd_within: unsupported max_distance type %T", args[2])
	}
	if !(maxDistance > 0) {
		return nil, fmt.Errorf("kd_within: %w: got %v", tree.ErrInvalidDistance, maxDistance)
	}
	if tree.Admits(a, b, w, maxDistance) && tree.Distance(a, b, w) <= maxDistance {
		return int64(1), nil
	}
	return int64(0), nil
}

func coordinateArgs(av, bv driver.Value, wv ...driver.Value) (a, b, w []float64, err error) {
	if a, err = asCoordinates(av); err != nil {
		return nil, nil, nil, err
	}
	if b, err = asCoordinates(bv); err != nil {
		return nil, nil, nil, err
	}
	if a == nil || b == nil {
		return nil, nil, nil, nil
	}
	if len(a) != len(b) {
		return nil, nil, nil, fmt.Errorf("kd: dim mismatch %d vs %d", len(a), len(b))
	}
	if len(wv) > 0 {
		if w, err = asCoordinates(wv[0]); err != nil {
			return nil, nil, nil, err
		}
	}
	if w == nil {
		w = make([]float64, len(a))
		for i := range w {
			w[i] = 1
		}
	}
	if len(w) != len(a) {
		return nil, nil, nil, fmt.Errorf("kd: weights dim mismatch %d vs %d", len(w), len(a))
	}
	for i, v := range w {
		if !(v > 0) {
			return nil, nil, nil, fmt.Errorf("kd: %w: axis %d got %v", tree.ErrInvalidWeight, i, v)
		}
	}
	return a, b, w, nil
}
