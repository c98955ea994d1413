package service

import (
	"testing"

	"github.com/paulmach/orb"
)

func poly(points ...orb.Point) orb.Polygon {
	ring := orb.Ring(points)
	ring = append(ring, points[0])
	return orb.Polygon{ring}
}

func TestIntersectsOverlapping(t *testing.T) {
	a := poly(orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{2, 2}, orb.Point{0, 2})
	b := poly(orb.Point{1, 1}, orb.Point{3, 1}, orb.Point{3, 3}, orb.Point{1, 3})
	if !Intersects(a, b) {
		t.Fatal("overlapping polygons reported disjoint")
	}
}

func TestIntersectsDisjoint(t *testing.T) {
	a := poly(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1})
	b := poly(orb.Point{5, 5}, orb.Point{6, 5}, orb.Point{6, 6}, orb.Point{5, 6})
	if Intersects(a, b) {
		t.Fatal("disjoint polygons reported intersecting")
	}
}

func TestIntersectsContained(t *testing.T) {
	outer := poly(orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{10, 10}, orb.Point{0, 10})
	inner := poly(orb.Point{4, 4}, orb.Point{5, 4}, orb.Point{5, 5}, orb.Point{4, 5})
	if !Intersects(inner, outer) {
		t.Fatal("contained polygon reported disjoint")
	}
	if !Intersects(outer, inner) {
		t.Fatal("containment is not symmetric")
	}
}

func TestIntersectsEdgeCrossingOnly(t *testing.T) {
	// thin cross shapes: edges cross but neither has a vertex inside the other
	a := poly(orb.Point{-5, -0.1}, orb.Point{5, -0.1}, orb.Point{5, 0.1}, orb.Point{-5, 0.1})
	b := poly(orb.Point{-0.1, -5}, orb.Point{0.1, -5}, orb.Point{0.1, 5}, orb.Point{-0.1, 5})
	if !Intersects(a, b) {
		t.Fatal("crossing polygons reported disjoint")
	}
}

func TestIntersectsSharedBoundary(t *testing.T) {
	// sharing exactly one edge counts as at least one common point
	a := poly(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1})
	b := poly(orb.Point{1, 0}, orb.Point{2, 0}, orb.Point{2, 1}, orb.Point{1, 1})
	if !Intersects(a, b) {
		t.Fatal("edge-adjacent polygons reported disjoint")
	}
}

func TestIntersectsInsideHole(t *testing.T) {
	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {8, 2}, {8, 8}, {2, 8}, {2, 2}}
	donut := orb.Polygon{outer, hole}

	island := poly(orb.Point{4, 4}, orb.Point{5, 4}, orb.Point{5, 5}, orb.Point{4, 5})
	if Intersects(island, donut) {
		t.Fatal("polygon inside a hole reported intersecting")
	}

	acrossHole := poly(orb.Point{1, 4}, orb.Point{5, 4}, orb.Point{5, 5}, orb.Point{1, 5})
	if !Intersects(acrossHole, donut) {
		t.Fatal("polygon straddling the hole edge reported disjoint")
	}
}

func TestIntersectsMultiPolygon(t *testing.T) {
	mp := orb.MultiPolygon{
		poly(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1}),
		poly(orb.Point{5, 5}, orb.Point{6, 5}, orb.Point{6, 6}, orb.Point{5, 6}),
	}
	probe := poly(orb.Point{5.2, 5.2}, orb.Point{5.8, 5.2}, orb.Point{5.8, 5.8}, orb.Point{5.2, 5.8})
	if !Intersects(probe, mp) {
		t.Fatal("probe in second member reported disjoint")
	}

	miss := poly(orb.Point{3, 3}, orb.Point{4, 3}, orb.Point{4, 4}, orb.Point{3, 4})
	if Intersects(miss, mp) {
		t.Fatal("probe between members reported intersecting")
	}
}

func TestIntersectsPoint(t *testing.T) {
	region := poly(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1})
	if !Intersects(orb.Point{0.5, 0.5}, region) {
		t.Fatal("interior point reported disjoint")
	}
	if Intersects(orb.Point{2, 2}, region) {
		t.Fatal("exterior point reported intersecting")
	}
}

func TestIntersectsNil(t *testing.T) {
	region := poly(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 1}, orb.Point{0, 1})
	if Intersects(nil, region) || Intersects(region, nil) {
		t.Fatal("nil geometry reported intersecting")
	}
}
