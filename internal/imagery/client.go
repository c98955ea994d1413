// Package imagery queries the ArcGIS World Imagery service for the
// capture dates of the satellite tiles covering a map view.
package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// DefaultQueryURL is the World Imagery metadata layer query endpoint.
const DefaultQueryURL = "https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/0/query"

// MinZoom is the lowest zoom level at which date queries are permitted;
// below it the metadata layer returns nothing useful.
const MinZoom = 12

// ErrZoomTooLow is returned for queries below MinZoom.
var ErrZoomTooLow = fmt.Errorf("imagery dates require zoom level %d or higher", MinZoom)

// Client queries imagery capture dates.
type Client struct {
	queryURL string
	http     *http.Client
}

// New creates a client. An empty queryURL uses the ArcGIS service.
func New(queryURL string) *Client {
	if queryURL == "" {
		queryURL = DefaultQueryURL
	}
	return &Client{
		queryURL: queryURL,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type esriFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   struct {
		Rings [][][]float64 `json:"rings"`
	} `json:"geometry"`
}

type esriResponse struct {
	Features []esriFeature `json:"features"`
}

// Dates returns the imagery capture dates for a WGS84 bound at the
// given zoom, keyed YYYY-MM-DD, each with the GeoJSON footprint of the
// dated capture. The envelope is sent to the service in EPSG:3857.
func (c *Client) Dates(ctx context.Context, bound orb.Bound, zoom int) (map[string]*geojson.Feature, error) {
	if zoom < MinZoom {
		return nil, ErrZoomTooLow
	}

	sw := project.Point(bound.Min, project.WGS84.ToMercator)
	ne := project.Point(bound.Max, project.WGS84.ToMercator)

	envelope, err := json.Marshal(map[string]any{
		"xmin":             sw[0],
		"ymin":             sw[1],
		"xmax":             ne[0],
		"ymax":             ne[1],
		"spatialReference": map[string]any{"wkid": 102100},
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("f", "json")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("geometry", string(envelope))
	params.Set("geometryType", "esriGeometryEnvelope")
	params.Set("inSR", "102100")
	params.Set("outSR", "4326")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.queryURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagery query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagery query: unexpected status %s", resp.Status)
	}

	var body esriResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode imagery response: %w", err)
	}

	dates := make(map[string]*geojson.Feature)
	for _, f := range body.Features {
		date, ok := formatSrcDate(f.Attributes["SRC_DATE"])
		if !ok {
			continue
		}
		dates[date] = esriToGeoJSON(f)
	}
	return dates, nil
}

// formatSrcDate turns an Esri SRC_DATE attribute (YYYYMMDD, numeric or
// string) into YYYY-MM-DD.
func formatSrcDate(v any) (string, bool) {
	var raw string
	switch d := v.(type) {
	case float64:
		raw = fmt.Sprintf("%.0f", d)
	case string:
		raw = d
	default:
		return "", false
	}
	if len(raw) != 8 {
		return "", false
	}
	return raw[:4] + "-" + raw[4:6] + "-" + raw[6:8], true
}

// esriToGeoJSON converts an Esri polygon feature (rings) to GeoJSON.
func esriToGeoJSON(f esriFeature) *geojson.Feature {
	poly := make(orb.Polygon, 0, len(f.Geometry.Rings))
	for _, ring := range f.Geometry.Rings {
		r := make(orb.Ring, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			r = append(r, orb.Point{pt[0], pt[1]})
		}
		poly = append(poly, r)
	}

	feature := geojson.NewFeature(poly)
	feature.Properties = geojson.Properties{}
	for k, v := range f.Attributes {
		feature.Properties[k] = v
	}
	return feature
}
