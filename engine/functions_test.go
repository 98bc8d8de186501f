package engine

import (
	"math"
	"testing"

	"github.com/viant/sqlite-kd/point"
)

func TestRegisterFunctionsAndUse(t *testing.T) {
	// Register globally before first connection so functions are available.
	if err := RegisterFunctions(nil); err != nil {
		t.Fatalf("RegisterFunctions failed: %v", err)
	}
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	// Registration is idempotent.
	if err := RegisterFunctions(db); err != nil {
		t.Fatalf("RegisterFunctions failed: %v", err)
	}

	zero, _ := point.EncodeCoordinates([]float64{0, 0})
	threeFour, _ := point.EncodeCoordinates([]float64{3, 4})
	weights, _ := point.EncodeCoordinates([]float64{2, 2})

	var dist float64
	if err := db.QueryRow(`SELECT kd_distance(?, ?)`, zero, threeFour).Scan(&dist); err != nil {
		t.Fatalf("kd_distance query failed: %v", err)
	}
	if math.Abs(dist-5) > 1e-9 {
		t.Fatalf("kd_distance = %v, want 5", dist)
	}

	if err := db.QueryRow(`SELECT kd_weighted_distance(?, ?, ?)`, zero, threeFour, weights).Scan(&dist); err != nil {
		t.Fatalf("kd_weighted_distance query failed: %v", err)
	}
	if math.Abs(dist-2.5) > 1e-9 {
		t.Fatalf("kd_weighted_distance = %v, want 2.5", dist)
	}

	var within int64
	testCases := []struct {
		radius float64
		expect int64
	}{
		// Half-widths are r/2 on both axes; r=10 admits |4| and 2.5 <= 10.
		{radius: 10, expect: 1},
		// r=8 puts the long axis exactly on the box edge (4 <= 8/2).
		{radius: 8, expect: 1},
		// r=3 gives half-width 1.5 < 3: rejected by the box.
		{radius: 3, expect: 0},
		// r=1.5 gives half-width 0.75 < 3: rejected by the box.
		{radius: 1.5, expect: 0},
	}
	for _, tc := range testCases {
		if err := db.QueryRow(`SELECT kd_within(?, ?, ?, ?)`, zero, threeFour, tc.radius, weights).Scan(&within); err != nil {
			t.Fatalf("kd_within(r=%v) query failed: %v", tc.radius, err)
		}
		if within != tc.expect {
			t.Fatalf("kd_within(r=%v) = %v, want %v", tc.radius, within, tc.expect)
		}
	}

	if err := db.QueryRow(`SELECT kd_distance(?, ?)`, zero, []byte{1, 2, 3}).Scan(&dist); err == nil {
		t.Fatalf("expected error for malformed blob")
	}
}
