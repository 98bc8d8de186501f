package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-kd/internal/kd/tree"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description string
		yaml        string
		expect      *Config
		expectErr   error
	}{
		{
			description: "defaults",
			yaml:        "dimensions: [lat, long]\nradius: 500\n",
			expect: &Config{
				Database:   DefaultDatabase,
				Source:     DefaultSource,
				Dimensions: []string{"lat", "long"},
				Radius:     500,
				LogLevel:   DefaultLogLevel,
			},
		},
		{
			description: "full",
			yaml: `database: geo.sqlite
source: stops
dimensions: [lat, long]
weights:
  lat: 364000
  long: 288200
radius: 500
parallel: 4
log_level: debug
`,
			expect: &Config{
				Database:   "geo.sqlite",
				Source:     "stops",
				Dimensions: []string{"lat", "long"},
				Weights:    map[string]float64{"lat": 364000, "long": 288200},
				Radius:     500,
				Parallel:   4,
				LogLevel:   "debug",
			},
		},
		{description: "no dimensions", yaml: "radius: 1\n", expectErr: tree.ErrInvalidConfiguration},
		{description: "duplicate dimension", yaml: "dimensions: [x, x]\nradius: 1\n", expectErr: tree.ErrInvalidConfiguration},
		{description: "zero radius", yaml: "dimensions: [x]\n", expectErr: tree.ErrInvalidDistance},
		{description: "negative weight", yaml: "dimensions: [x]\nradius: 1\nweights: {x: -1}\n", expectErr: tree.ErrInvalidWeight},
		{description: "unknown weight", yaml: "dimensions: [x]\nradius: 1\nweights: {y: 2}\n", expectErr: tree.ErrInvalidWeight},
		{description: "negative parallel", yaml: "dimensions: [x]\nradius: 1\nparallel: -2\n", expectErr: tree.ErrInvalidConfiguration},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual, err := Parse([]byte(testCase.yaml))
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kdnn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dimensions: [x, y]\nradius: 2\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, cfg.Dimensions)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("dimensions: [x\n"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}
