// Package buildingsclient is a small Go client for the plat-buildings
// REST API.
package buildingsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HealthBody is the /health response.
type HealthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// InfoBody is the /api/v1/info response.
type InfoBody struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	DataDir  string   `json:"data_dir"`
	DB       bool     `json:"db"`
	Features []string `json:"features"`
}

// CoveringBody is the /api/v1/covering response.
type CoveringBody struct {
	Tokens []string `json:"tokens"`
	Count  int      `json:"count"`
}

// ResultsBody is the /api/v1/results response.
type ResultsBody struct {
	Region         string   `json:"region"`
	Tokens         []string `json:"tokens"`
	HasResult      bool     `json:"has_result"`
	Count          int      `json:"count"`
	MeanConfidence float64  `json:"mean_confidence"`
}

// ImageryBody is the /api/v1/imagery response.
type ImageryBody struct {
	Dates []string `json:"dates"`
}

// QueryBody is the /api/v1/query response.
type QueryBody struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

// Client calls the plat-buildings REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Health checks service health.
func (c *Client) Health(ctx context.Context) (*http.Response, HealthBody, error) {
	var body HealthBody
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, &body)
	return resp, body, err
}

// GetInfo returns service metadata.
func (c *Client) GetInfo(ctx context.Context) (*http.Response, InfoBody, error) {
	var body InfoBody
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/info", nil, &body)
	return resp, body, err
}

// Covering returns the S2 covering tokens for a WKT region.
func (c *Client) Covering(ctx context.Context, wkt string) (*http.Response, CoveringBody, error) {
	var body CoveringBody
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/covering", map[string]string{"wkt": wkt}, &body)
	return resp, body, err
}

// Results returns the current session summary.
func (c *Client) Results(ctx context.Context) (*http.Response, ResultsBody, error) {
	var body ResultsBody
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/results", nil, &body)
	return resp, body, err
}

// Imagery returns imagery capture dates for a WGS84 bound at a zoom.
func (c *Client) Imagery(ctx context.Context, minLon, minLat, maxLon, maxLat float64, zoom int) (*http.Response, ImageryBody, error) {
	params := url.Values{}
	params.Set("min_lon", formatFloat(minLon))
	params.Set("min_lat", formatFloat(minLat))
	params.Set("max_lon", formatFloat(maxLon))
	params.Set("max_lat", formatFloat(maxLat))
	params.Set("zoom", strconv.Itoa(zoom))

	var body ImageryBody
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/imagery?"+params.Encode(), nil, &body)
	return resp, body, err
}

// Query runs an ad-hoc SQL query against the shard views.
func (c *Client) Query(ctx context.Context, query string) (*http.Response, QueryBody, error) {
	var body QueryBody
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/query", map[string]string{"query": query}, &body)
	return resp, body, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	var reqBody *bytes.Buffer
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp, fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return resp, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
