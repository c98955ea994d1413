package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Shard column order. Shards carry no header row.
const (
	colLatitude = iota
	colLongitude
	colArea
	colConfidence
	colGeometry
	colPlusCode
	shardColumns
)

// LoadShard parses a decompressed shard CSV into building records.
// Parsing is fail-fast: a malformed row or unparsable WKT geometry
// aborts the whole load with the row number in the error, so partial
// results are never shown. A missing file returns ErrNotFound.
func LoadShard(csvPath string) ([]Building, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", csvPath, ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = shardColumns
	// WKT polygons contain commas inside parens; they are quoted in the
	// shard files, which encoding/csv handles natively.

	var buildings []Building
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", csvPath, row, err)
		}

		b, err := parseBuilding(record)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", csvPath, row, err)
		}
		buildings = append(buildings, b)
	}
	return buildings, nil
}

func parseBuilding(record []string) (Building, error) {
	var b Building
	var err error

	if b.Latitude, err = strconv.ParseFloat(record[colLatitude], 64); err != nil {
		return b, fmt.Errorf("bad latitude %q: %w", record[colLatitude], err)
	}
	if b.Longitude, err = strconv.ParseFloat(record[colLongitude], 64); err != nil {
		return b, fmt.Errorf("bad longitude %q: %w", record[colLongitude], err)
	}
	if b.AreaInMeters, err = strconv.ParseFloat(record[colArea], 64); err != nil {
		return b, fmt.Errorf("bad area %q: %w", record[colArea], err)
	}
	if b.Confidence, err = strconv.ParseFloat(record[colConfidence], 64); err != nil {
		return b, fmt.Errorf("bad confidence %q: %w", record[colConfidence], err)
	}
	if b.Geometry, err = wkt.Unmarshal(record[colGeometry]); err != nil {
		return b, fmt.Errorf("bad geometry WKT: %w", err)
	}
	b.PlusCode = record[colPlusCode]
	return b, nil
}

// Filter keeps the rows whose footprint intersects the region and
// computes the aggregates. Rows from a multi-cell covering must be
// concatenated into one slice before calling, so aggregation runs over
// the union, never per shard.
func Filter(buildings []Building, region orb.Geometry) FilterResult {
	var kept []Building
	for _, b := range buildings {
		if Intersects(b.Geometry, region) {
			kept = append(kept, b)
		}
	}
	return newFilterResult(kept)
}
