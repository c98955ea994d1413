package service

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// Shards are bucketed at S2 level 6. The cell cap is large enough that a
// covering never silently truncates for realistic regions.
const (
	coverLevel    = 6
	coverMaxCells = 1_000_000
)

// CoverRegion converts a WKT polygon or multipolygon into the S2 cell
// tokens whose shards may contain buildings for it. The covering is
// computed from the geometry's bounding rectangle, so it is a deliberate
// superset of the true footprint; the spatial filter removes the excess.
// The same input always yields the same tokens in the same order.
func CoverRegion(regionWKT string) ([]string, error) {
	g, err := ParseRegionWKT(regionWKT)
	if err != nil {
		return nil, err
	}
	return CoverGeometry(g), nil
}

// CoverGeometry covers an already-parsed polygonal geometry.
func CoverGeometry(g orb.Geometry) []string {
	b := g.Bound()
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(b.Min.Lat(), b.Min.Lon()))
	rect = rect.AddPoint(s2.LatLngFromDegrees(b.Max.Lat(), b.Max.Lon()))

	coverer := &s2.RegionCoverer{
		MinLevel: coverLevel,
		MaxLevel: coverLevel,
		MaxCells: coverMaxCells,
	}

	var tokens []string
	for _, id := range coverer.Covering(rect) {
		tokens = append(tokens, id.ToToken())
	}
	return tokens
}
