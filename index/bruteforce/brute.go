package bruteforce

import (
	"errors"
	"fmt"

	"github.com/viant/sqlite-kd/index"
	"github.com/viant/sqlite-kd/internal/kd/tree"
	"github.com/viant/sqlite-kd/point"
)

// Magic tags blobs produced by MarshalBinary.
const Magic = "BRF1"

// Index is a linear-scan nearest-neighbour index.
type Index struct {
	dims    tree.Dimensions
	records []point.Record
	coords  [][]float64
}

// Build resolves every record's coordinates once.
func (i *Index) Build(dims []string, records []point.Record) error {
	d, err := tree.NewDimensions(dims...)
	if err != nil {
		return fmt.Errorf("bruteforce: %w", err)
	}
	coords := make([][]float64, len(records))
	for j, r := range records {
		if coords[j], err = d.Resolve(r.ID, r.Position); err != nil {
			return fmt.Errorf("bruteforce: %w", err)
		}
	}
	i.dims = d
	i.records = append([]point.Record(nil), records...)
	i.coords = coords
	return nil
}

// Nearest scans records in insertion order; ties keep the earliest record.
func (i *Index) Nearest(q index.Query) (*index.Match, error) {
	if i.dims.Len() == 0 {
		return nil, nil
	}
	if !(q.MaxDistance > 0) {
		return nil, fmt.Errorf("bruteforce: %w: got %v", tree.ErrInvalidDistance, q.MaxDistance)
	}
	query, err := i.dims.Resolve("", q.Position)
	if err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	weights, err := tree.Weights(q.Weights).Resolve(i.dims)
	if err != nil {
		return nil, fmt.Errorf("bruteforce: %w", err)
	}
	best := -1
	var bestDistance float64
	for j, c := range i.coords {
		if q.SelfID != "" && i.records[j].ID == q.SelfID {
			continue
		}
		if !tree.Admits(query, c, weights, q.MaxDistance) {
			continue
		}
		d := tree.Distance(query, c, weights)
		if d > q.MaxDistance {
			continue
		}
		if best < 0 || d < bestDistance {
			best, bestDistance = j, d
		}
	}
	if best < 0 {
		return nil, nil
	}
	return index.NewMatch(i.records[best], bestDistance), nil
}

// Dimensions returns the ordered dimension names.
func (i *Index) Dimensions() []string { return i.dims.Names() }

// Len returns the number of records.
func (i *Index) Len() int { return len(i.records) }

// MarshalBinary stores Magic followed by the shared record encoding.
func (i *Index) MarshalBinary() ([]byte, error) {
	body, err := index.EncodeRecords(i.dims.Names(), i.records)
	if err != nil {
		return nil, err
	}
	return append([]byte(Magic), body...), nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if index.Magic(data) != Magic {
		return errors.New("bruteforce: invalid data")
	}
	dims, records, err := index.DecodeRecords(data[len(Magic):])
	if err != nil {
		return err
	}
	return i.Build(dims, records)
}

var _ index.Index = (*Index)(nil)
