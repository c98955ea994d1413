package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Intersects reports whether two geometries share at least one point,
// using the standard planar predicate over WGS84 coordinates. Polygons,
// multipolygons and points are supported; that covers shard footprints
// (polygons) against user regions (polygons or multipolygons).
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	for _, pa := range asPolygons(a) {
		for _, pb := range asPolygons(b) {
			if polygonsIntersect(pa, pb) {
				return true
			}
		}
	}

	if pt, ok := a.(orb.Point); ok {
		return geometryContainsPoint(b, pt)
	}
	if pt, ok := b.(orb.Point); ok {
		return geometryContainsPoint(a, pt)
	}
	return false
}

func asPolygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	default:
		return nil
	}
}

func geometryContainsPoint(g orb.Geometry, p orb.Point) bool {
	for _, poly := range asPolygons(g) {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	return false
}

// polygonsIntersect is true when a vertex of either polygon lies inside
// the other (covers full containment, holes included) or any pair of
// ring edges crosses.
func polygonsIntersect(a, b orb.Polygon) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	if anyVertexInside(a, b) || anyVertexInside(b, a) {
		return true
	}
	for _, ra := range a {
		for _, rb := range b {
			if ringsCross(ra, rb) {
				return true
			}
		}
	}
	return false
}

func anyVertexInside(a, b orb.Polygon) bool {
	for _, ring := range a {
		for _, p := range ring {
			if planar.PolygonContains(b, p) {
				return true
			}
		}
	}
	return false
}

func ringsCross(a, b orb.Ring) bool {
	for i := 0; i < len(a)-1; i++ {
		for j := 0; j < len(b)-1; j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect is the orientation test, including collinear
// overlaps and shared endpoints.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}
