package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/viant/sqlite-kd/point"
)

// loadCSV reads records from a CSV file whose header names an id column, one
// column per dimension and an optional payload column, and upserts them.
func loadCSV(ctx context.Context, store point.Store, path string, dims []string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	records, err := readCSV(f, dims)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := store.AddRecords(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func readCSV(r io.Reader, dims []string) ([]point.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, ok := columns["id"]
	if !ok {
		return nil, errors.New("header has no id column")
	}
	dimCols := make([]int, len(dims))
	for i, d := range dims {
		col, ok := columns[strings.ToLower(d)]
		if !ok {
			return nil, fmt.Errorf("header has no column for dimension %q", d)
		}
		dimCols[i] = col
	}
	payloadCol, hasPayload := columns["payload"]

	var out []point.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec := point.Record{ID: strings.TrimSpace(row[idCol]), Position: make(map[string]float64, len(dims))}
		if rec.ID == "" {
			return nil, fmt.Errorf("line %d: empty id", line)
		}
		for i, d := range dims {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[dimCols[i]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: dimension %q: %w", line, d, err)
			}
			rec.Position[d] = v
		}
		if hasPayload {
			rec.Payload = row[payloadCol]
		}
		out = append(out, rec)
	}
	return out, nil
}
