package kdtree

import (
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gonum "gonum.org/v1/gonum/spatial/kdtree"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/point"
)

// With two dimensions and unit weights the metric is plain Euclidean
// distance, so an unconstrained query must agree with gonum's k-d tree.
func TestIndex_AgreesWithGonum(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const n = 500
	records := make([]point.Record, n)
	pts := make(gonum.Points, n)
	byCoords := make(map[[2]float64]string, n)
	for i := range records {
		x, y := rng.Float64()*100, rng.Float64()*100
		id := "p" + strconv.Itoa(i)
		records[i] = point.Record{ID: id, Position: map[string]float64{"x": x, "y": y}}
		pts[i] = gonum.Point{x, y}
		byCoords[[2]float64{x, y}] = id
	}
	idx := New(WithBuildParallelism(4))
	require.NoError(t, idx.Build([]string{"x", "y"}, records))
	reference := gonum.New(pts, false)

	for q := 0; q < 200; q++ {
		qx, qy := rng.Float64()*100, rng.Float64()*100
		m, err := idx.Nearest(index.Query{Position: map[string]float64{"x": qx, "y": qy}, MaxDistance: 1e6})
		require.NoError(t, err)
		require.NotNil(t, m)

		got, sq := reference.Nearest(gonum.Point{qx, qy})
		p := got.(gonum.Point)
		assert.Equal(t, byCoords[[2]float64{p[0], p[1]}], m.ID)
		assert.InDelta(t, math.Sqrt(sq), m.Distance, 1e-9)
	}
}
