package nn

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/sqlite-kd/point"
	"modernc.org/sqlite/vtab"
)

// decodeQuery converts a MATCH argument into a named position.
func decodeQuery(v vtab.Value, dims []string) (map[string]float64, error) {
	switch val := v.(type) {
	case []byte:
		coords, err := point.DecodeCoordinates(val)
		if err != nil {
			return nil, err
		}
		return namedPosition(coords, dims)
	case string:
		return decodeQueryString(val, dims)
	default:
		return nil, fmt.Errorf("kdnn: expected query as BLOB or string, got %T", v)
	}
}

func decodeQueryString(raw string, dims []string) (map[string]float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("kdnn: query string is empty")
	}
	switch s[0] {
	case '{':
		position, err := point.DecodePosition(s)
		if err != nil {
			return nil, fmt.Errorf("kdnn: %w", err)
		}
		return position, nil
	case '[':
		var coords []float64
		if err := json.Unmarshal([]byte(s), &coords); err != nil {
			return nil, fmt.Errorf("kdnn: invalid query array %q: %w", s, err)
		}
		return namedPosition(coords, dims)
	}
	parts := strings.Split(s, ",")
	coords := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("kdnn: invalid query float %q: %w", p, err)
		}
		coords = append(coords, f)
	}
	return namedPosition(coords, dims)
}

func namedPosition(coords []float64, dims []string) (map[string]float64, error) {
	if len(coords) != len(dims) {
		return nil, fmt.Errorf("kdnn: query has %d coordinates, want %d (%s)", len(coords), len(dims), strings.Join(dims, ","))
	}
	position := make(map[string]float64, len(dims))
	for i, d := range dims {
		position[d] = coords[i]
	}
	return position, nil
}

func asFloat(v vtab.Value) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case []byte:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return 0, fmt.Errorf("kdnn: cannot parse radius %q: %w", string(val), err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("kdnn: cannot parse radius %q: %w", val, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("kdnn: unsupported radius type %T", v)
	}
}

func asString(v vtab.Value) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("kdnn: unsupported self type %T", v)
	}
}
