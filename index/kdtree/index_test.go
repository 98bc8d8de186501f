package kdtree

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/index/bruteforce"
	"github.com/viant/sqlite-kd/internal/kd/tree"
	"github.com/viant/sqlite-kd/point"
)

var geo = []point.Record{
	{ID: "A", Position: map[string]float64{"lat": 33.748995, "long": -84.387982}},
	{ID: "B", Position: map[string]float64{"lat": 33.748996, "long": -84.387980}},
	{ID: "C", Position: map[string]float64{"lat": 33.749500, "long": -84.388500}},
	{ID: "D", Position: map[string]float64{"lat": 33.760000, "long": -84.390000}},
	{ID: "E", Position: map[string]float64{"lat": 33.760400, "long": -84.390300}},
	{ID: "F", Position: map[string]float64{"lat": 33.770000, "long": -84.400000}},
	{ID: "G", Position: map[string]float64{"lat": 33.740000, "long": -84.380000}},
	{ID: "H", Position: map[string]float64{"lat": 33.752103, "long": -84.138643}, Payload: `{"name":"H"}`},
}

var feet = map[string]float64{"lat": 364000, "long": 288200}

func TestIndex_GeographicNeighbours(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Build([]string{"lat", "long"}, geo))
	assert.Equal(t, 8, idx.Len())
	assert.Equal(t, 4, idx.Height())

	m, err := idx.Nearest(index.Query{Position: geo[7].Position, MaxDistance: 500, Weights: feet, SelfID: "H"})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = idx.Nearest(index.Query{Position: geo[0].Position, MaxDistance: 500, Weights: feet, SelfID: "A"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "B", m.ID)

	m, err = idx.Nearest(index.Query{Position: geo[1].Position, MaxDistance: 500, Weights: feet, SelfID: "B"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "A", m.ID)

	// Without self-exclusion H finds itself.
	m, err = idx.Nearest(index.Query{Position: geo[7].Position, MaxDistance: 500, Weights: feet})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "H", m.ID)
	assert.Equal(t, `{"name":"H"}`, m.Payload)
	assert.Equal(t, 0.0, m.Distance)
}

func TestIndex_MarshalRoundTrip(t *testing.T) {
	idx := New(WithBuildParallelism(4))
	require.NoError(t, idx.Build([]string{"lat", "long"}, geo))
	data, err := idx.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, Magic, index.Magic(data))

	restored := New()
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, idx.records, restored.records)
	assert.Equal(t, []string{"lat", "long"}, restored.Dimensions())

	var want, got []string
	idx.tree.Walk(func(n *tree.Node[point.Record], _ int) bool { want = append(want, n.ID()); return true })
	restored.tree.Walk(func(n *tree.Node[point.Record], _ int) bool { got = append(got, n.ID()); return true })
	assert.Equal(t, want, got)

	assert.Error(t, restored.UnmarshalBinary([]byte("BRF1")))
	assert.Error(t, restored.UnmarshalBinary([]byte("KDT1garbage")))
	_, err = New().MarshalBinary()
	assert.Error(t, err)
}

func TestIndex_AgreesWithBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	dims := []string{"x", "y", "z"}
	records := make([]point.Record, 1500)
	for i := range records {
		records[i] = point.Record{
			ID: strconv.Itoa(i),
			Position: map[string]float64{
				"x": rng.Float64() * 50,
				"y": float64(rng.IntN(30)),
				"z": rng.NormFloat64() * 10,
			},
		}
	}
	kd := New(WithBuildParallelism(4))
	require.NoError(t, kd.Build(dims, records))
	bf := &bruteforce.Index{}
	require.NoError(t, bf.Build(dims, records))

	for q := 0; q < 300; q++ {
		self := records[rng.IntN(len(records))]
		query := index.Query{
			Position:    self.Position,
			MaxDistance: 0.5 + rng.Float64()*4,
			Weights:     map[string]float64{"x": 0.5 + rng.Float64(), "z": 1 + rng.Float64()},
			SelfID:      self.ID,
		}
		want, err := bf.Nearest(query)
		require.NoError(t, err)
		got, err := kd.Nearest(query)
		require.NoError(t, err)
		if want == nil {
			assert.Nil(t, got, "query %d", q)
			continue
		}
		require.NotNil(t, got, "query %d: brute force found %s at %v", q, want.ID, want.Distance)
		assert.Equal(t, want.Distance, got.Distance, "query %d", q)
	}
}

func TestIndex_Tracer(t *testing.T) {
	var events []tree.Event
	idx := New(WithTracer(tree.TracerFunc(func(e tree.Event) { events = append(events, e) })))
	require.NoError(t, idx.Build([]string{"lat", "long"}, geo))
	m, err := idx.Nearest(index.Query{Position: geo[0].Position, MaxDistance: 500, Weights: feet, SelfID: "A"})
	require.NoError(t, err)
	require.NotNil(t, m)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, tree.EventSelected, last.Kind)
	assert.Equal(t, "B", last.ID)
}

func TestIndex_Unbuilt(t *testing.T) {
	m, err := New().Nearest(index.Query{Position: map[string]float64{"lat": 1}, MaxDistance: 1})
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Nil(t, New().Dimensions())
}
