package service

import (
	"errors"
	"testing"

	"github.com/golang/geo/s2"
)

const squareWKT = "POLYGON((36.05 -1.05, 36.15 -1.05, 36.15 -0.95, 36.05 -0.95, 36.05 -1.05))"

func TestCoverRegion(t *testing.T) {
	tokens, err := CoverRegion(squareWKT)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) == 0 {
		t.Fatal("covering is empty")
	}

	for _, token := range tokens {
		id := s2.CellIDFromToken(token)
		if !id.IsValid() {
			t.Fatalf("token %q is not a valid cell", token)
		}
		if id.Level() != coverLevel {
			t.Fatalf("token %q level=%d, want %d", token, id.Level(), coverLevel)
		}
	}
}

func TestCoverRegionDeterministic(t *testing.T) {
	first, err := CoverRegion(squareWKT)
	if err != nil {
		t.Fatal(err)
	}
	second, err := CoverRegion(squareWKT)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("covering sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("token %d differs: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestCoverRegionCellsOverlapBounds(t *testing.T) {
	region, err := ParseRegionWKT(squareWKT)
	if err != nil {
		t.Fatal(err)
	}
	b := region.Bound()
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(b.Min.Lat(), b.Min.Lon()))
	rect = rect.AddPoint(s2.LatLngFromDegrees(b.Max.Lat(), b.Max.Lon()))

	for _, token := range CoverGeometry(region) {
		cellRect := s2.CellFromCellID(s2.CellIDFromToken(token)).RectBound()
		if !cellRect.Intersects(rect) {
			t.Fatalf("cell %q does not overlap the region bounds", token)
		}
	}
}

func TestCoverRegionMultiPolygon(t *testing.T) {
	wkt := "MULTIPOLYGON(((0 0, 0.1 0, 0.1 0.1, 0 0.1, 0 0)))"
	tokens, err := CoverRegion(wkt)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) == 0 {
		t.Fatal("covering is empty")
	}
}

func TestCoverRegionRejectsNonPolygons(t *testing.T) {
	for _, wkt := range []string{
		"POINT(1 1)",
		"LINESTRING(0 0, 1 1)",
		"MULTIPOINT((1 1), (2 2))",
		// OGC short form, which orb's decoder does not accept directly.
		"MULTIPOINT(1 1, 2 2)",
	} {
		_, err := CoverRegion(wkt)
		if !errors.Is(err, ErrInvalidGeometryKind) {
			t.Fatalf("CoverRegion(%q) err=%v, want ErrInvalidGeometryKind", wkt, err)
		}
	}
}

func TestCoverRegionRejectsGarbage(t *testing.T) {
	if _, err := CoverRegion("not wkt at all"); err == nil {
		t.Fatal("expected parse error")
	}
}
