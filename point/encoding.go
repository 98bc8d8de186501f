package point

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// EncodeCoordinates encodes axis-ordered coordinates into a BLOB: a
// little-endian sequence of IEEE 754 float64 values without a length prefix.
func EncodeCoordinates(coords []float64) ([]byte, error) {
	if len(coords) == 0 {
		return nil, nil
	}
	b := make([]byte, len(coords)*8)
	for i, v := range coords {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b, nil
}

// DecodeCoordinates decodes a BLOB produced by EncodeCoordinates.
func DecodeCoordinates(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("point: invalid coordinates blob length %d (not multiple of 8)", len(b))
	}
	n := len(b) / 8
	coords := make([]float64, n)
	for i := 0; i < n; i++ {
		coords[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return coords, nil
}

// EncodePosition encodes a named position as a JSON object.
func EncodePosition(position map[string]float64) (string, error) {
	if len(position) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(position)
	if err != nil {
		return "", fmt.Errorf("point: encode position: %w", err)
	}
	return string(data), nil
}

// DecodePosition decodes a JSON object produced by EncodePosition.
func DecodePosition(s string) (map[string]float64, error) {
	position := map[string]float64{}
	if s == "" {
		return position, nil
	}
	if err := json.Unmarshal([]byte(s), &position); err != nil {
		return nil, fmt.Errorf("point: decode position %q: %w", s, err)
	}
	return position, nil
}
