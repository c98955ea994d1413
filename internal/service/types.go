// Package service contains the Open Buildings pipeline: region covering,
// shard download, decompression, and spatial filtering.
package service

import (
	"errors"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// Sentinel errors shared across the pipeline stages.
var (
	// ErrInvalidGeometryKind is returned when the input region is not a
	// polygon or multipolygon.
	ErrInvalidGeometryKind = errors.New("region must be a POLYGON or MULTIPOLYGON")

	// ErrNotFound is returned when a remote shard is absent for a cell,
	// or a local file to decompress or load does not exist.
	ErrNotFound = errors.New("not found")
)

// Building is one footprint row from a shard. Shards are headerless CSV
// with exactly this column order.
type Building struct {
	Latitude     float64      `json:"latitude" doc:"Footprint centroid latitude"`
	Longitude    float64      `json:"longitude" doc:"Footprint centroid longitude"`
	AreaInMeters float64      `json:"area_in_meters" doc:"Footprint area in square meters"`
	Confidence   float64      `json:"confidence" minimum:"0" maximum:"1" doc:"Detection confidence score"`
	Geometry     orb.Geometry `json:"-"`
	PlusCode     string       `json:"full_plus_code" doc:"Full Open Location Code"`
}

// FilterResult is the filtered subset of shard rows for a region, plus
// derived aggregates. Recomputed in full on every fetch.
type FilterResult struct {
	Buildings      []Building
	Count          int
	MeanConfidence float64 // NaN when Count is zero
}

func newFilterResult(kept []Building) FilterResult {
	mean := math.NaN()
	if len(kept) > 0 {
		sum := 0.0
		for _, b := range kept {
			sum += b.Confidence
		}
		mean = sum / float64(len(kept))
	}
	return FilterResult{Buildings: kept, Count: len(kept), MeanConfidence: mean}
}

// FeatureCollection serializes the filtered rows as WGS84 GeoJSON with
// the row attributes as feature properties.
func (r *FilterResult) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range r.Buildings {
		f := geojson.NewFeature(b.Geometry)
		f.Properties = geojson.Properties{
			"latitude":       b.Latitude,
			"longitude":      b.Longitude,
			"area_in_meters": b.AreaInMeters,
			"confidence":     b.Confidence,
			"full_plus_code": b.PlusCode,
		}
		fc.Append(f)
	}
	return fc
}

// Summary is the session-level result view returned by the REST API.
type Summary struct {
	Region         string   `json:"region" doc:"Selected region feature name"`
	Tokens         []string `json:"tokens" doc:"S2 covering tokens for the region"`
	HasResult      bool     `json:"has_result" doc:"Whether a fetch has completed for this region"`
	Count          int      `json:"count" doc:"Number of intersecting buildings"`
	MeanConfidence float64  `json:"mean_confidence" doc:"Mean confidence over the filtered set (0 when empty)"`
}

// ParseRegionWKT parses a WKT region and validates its geometry kind.
func ParseRegionWKT(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		// orb only accepts the parenthesized MULTIPOINT form; rewrite
		// the OGC short form so both spellings classify the same way
		// instead of failing the parse.
		alt, ok := expandShortMultiPoint(s)
		if !ok {
			return nil, err
		}
		if g, err = wkt.Unmarshal(alt); err != nil {
			return nil, err
		}
	}
	if err := ValidateRegionGeometry(g); err != nil {
		return nil, err
	}
	return g, nil
}

// expandShortMultiPoint rewrites MULTIPOINT(1 1, 2 2) as
// MULTIPOINT((1 1), (2 2)).
func expandShortMultiPoint(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	const prefix = "MULTIPOINT"
	if len(trimmed) < len(prefix) || !strings.EqualFold(trimmed[:len(prefix)], prefix) {
		return "", false
	}
	open := strings.Index(trimmed, "(")
	end := strings.LastIndex(trimmed, ")")
	if open < 0 || end < open {
		return "", false
	}
	inner := trimmed[open+1 : end]
	if strings.Contains(inner, "(") {
		return "", false
	}
	parts := strings.Split(inner, ",")
	for i, p := range parts {
		parts[i] = "(" + strings.TrimSpace(p) + ")"
	}
	return "MULTIPOINT (" + strings.Join(parts, ", ") + ")", true
}

// ValidateRegionGeometry rejects any region that is not a polygon or
// multipolygon, before anything is downloaded.
func ValidateRegionGeometry(g orb.Geometry) error {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return nil
	default:
		return ErrInvalidGeometryKind
	}
}
