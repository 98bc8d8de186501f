package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/viant/sqlite-kd/point"
)

const magicLen = 4

// Magic returns the 4-byte format tag of a serialized index, or "" when the
// blob is too short.
func Magic(blob []byte) string {
	if len(blob) < magicLen {
		return ""
	}
	return string(blob[:magicLen])
}

// EncodeRecords stores: k(uint32), then k times nameLen(uint32)+name,
// n(uint32), then for each record: idLen(uint32), id, payloadLen(uint32),
// payload, coords(float64[k]) in dimension order.
func EncodeRecords(dims []string, records []point.Record) ([]byte, error) {
	size := 8
	for _, d := range dims {
		size += 4 + len(d)
	}
	for _, r := range records {
		size += 8 + len(r.ID) + len(r.Payload) + 8*len(dims)
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(dims)))
	for _, d := range dims {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(d)))
		out = append(out, d...)
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(records)))
	for _, r := range records {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.ID)))
		out = append(out, r.ID...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Payload)))
		out = append(out, r.Payload...)
		for _, d := range dims {
			v, ok := r.Position[d]
			if !ok {
				return nil, fmt.Errorf("index: record %q has no value for dimension %q", r.ID, d)
			}
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
		}
	}
	return out, nil
}

// DecodeRecords restores dimensions and records from EncodeRecords output.
func DecodeRecords(data []byte) ([]string, []point.Record, error) {
	off := 0
	getU32 := func() (uint32, error) {
		if off+4 > len(data) {
			return 0, errors.New("index: truncated")
		}
		v := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		return v, nil
	}
	getString := func(what string) (string, error) {
		n, err := getU32()
		if err != nil {
			return "", err
		}
		if off+int(n) > len(data) {
			return "", fmt.Errorf("index: truncated %s", what)
		}
		s := string(data[off : off+int(n)])
		off += int(n)
		return s, nil
	}

	k, err := getU32()
	if err != nil {
		return nil, nil, err
	}
	// Each dimension needs at least its length prefix.
	if uint64(k)*4 > uint64(len(data)-off) {
		return nil, nil, fmt.Errorf("index: dimension count %d exceeds blob size", k)
	}
	dims := make([]string, k)
	for i := range dims {
		if dims[i], err = getString("dimension"); err != nil {
			return nil, nil, err
		}
	}
	n, err := getU32()
	if err != nil {
		return nil, nil, err
	}
	// Each record needs two length prefixes and k coordinates.
	if uint64(n)*(8+8*uint64(k)) > uint64(len(data)-off) {
		return nil, nil, fmt.Errorf("index: record count %d exceeds blob size", n)
	}
	records := make([]point.Record, n)
	for i := range records {
		r := &records[i]
		if r.ID, err = getString("id"); err != nil {
			return nil, nil, err
		}
		if r.Payload, err = getString("payload"); err != nil {
			return nil, nil, err
		}
		r.Position = make(map[string]float64, len(dims))
		for _, d := range dims {
			if off+8 > len(data) {
				return nil, nil, errors.New("index: truncated coordinates")
			}
			r.Position[d] = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
			off += 8
		}
	}
	return dims, records, nil
}
