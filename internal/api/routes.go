// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-buildings/internal/imagery"
	"github.com/joeblew999/plat-buildings/internal/service"
)

// Services holds the dependencies for API handlers.
type Services struct {
	Region   *service.RegionService
	Explorer *service.Explorer
	Session  *service.Session
	Imagery  *imagery.Client
}

// Types

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether DuckDB is available"`
	Features []string `json:"features" doc:"Available features"`
}

type CoveringInput struct {
	Body struct {
		WKT string `json:"wkt" required:"true" doc:"Region as WKT POLYGON or MULTIPOLYGON"`
	}
}

type CoveringOutput struct {
	Body struct {
		Tokens []string `json:"tokens" doc:"S2 covering cell tokens, level 6"`
		Count  int      `json:"count" doc:"Number of covering cells"`
	}
}

type ResultsOutput struct {
	Body service.Summary
}

type ImageryInput struct {
	MinLon float64 `query:"min_lon" required:"true" doc:"West bound, WGS84"`
	MinLat float64 `query:"min_lat" required:"true" doc:"South bound, WGS84"`
	MaxLon float64 `query:"max_lon" required:"true" doc:"East bound, WGS84"`
	MaxLat float64 `query:"max_lat" required:"true" doc:"North bound, WGS84"`
	Zoom   int     `query:"zoom" required:"true" doc:"Current map zoom level"`
}

type ImageryOutput struct {
	Body struct {
		Dates    []string                    `json:"dates" doc:"Capture dates, YYYY-MM-DD"`
		Features map[string]*geojson.Feature `json:"features" doc:"Capture footprint per date"`
	}
}

// APIHandler holds the REST handlers.
type APIHandler struct {
	svc     *Services
	dataDir string
	dbOK    bool
}

// NewAPIHandler creates the REST handler set.
func NewAPIHandler(svc *Services, dataDir string, dbOK bool) *APIHandler {
	return &APIHandler{svc: svc, dataDir: dataDir, dbOK: dbOK}
}

// RegisterRoutes registers every REST route.
func (h *APIHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
	huma.Post(api, "/api/v1/covering", h.PostCovering, huma.OperationTags("pipeline"))
	huma.Get(api, "/api/v1/results", h.GetResults, huma.OperationTags("pipeline"))
	huma.Get(api, "/api/v1/imagery", h.GetImagery, huma.OperationTags("imagery"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:    "plat-buildings",
		Version: "0.1.0",
		DataDir: h.dataDir,
		DB:      h.dbOK,
		Features: []string{
			"s2-covering",
			"open-buildings",
			"imagery-dates",
			"duckdb",
		},
	}}, nil
}

// PostCovering converts a WKT region into its S2 covering tokens.
func (h *APIHandler) PostCovering(ctx context.Context, input *CoveringInput) (*CoveringOutput, error) {
	tokens, err := service.CoverRegion(input.Body.WKT)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGeometryKind) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error400BadRequest("failed to parse WKT: " + err.Error())
	}

	out := &CoveringOutput{}
	out.Body.Tokens = tokens
	out.Body.Count = len(tokens)
	return out, nil
}

// GetResults returns the current session summary.
func (h *APIHandler) GetResults(ctx context.Context, input *struct{}) (*ResultsOutput, error) {
	if h.svc == nil || h.svc.Session == nil {
		return nil, huma.Error404NotFound("no session")
	}
	h.svc.Session.Lock()
	defer h.svc.Session.Unlock()
	return &ResultsOutput{Body: h.svc.Session.Summary()}, nil
}

// GetImagery looks up imagery capture dates for a map view.
func (h *APIHandler) GetImagery(ctx context.Context, input *ImageryInput) (*ImageryOutput, error) {
	if h.svc == nil || h.svc.Imagery == nil {
		return nil, huma.Error503ServiceUnavailable("imagery client not configured")
	}

	bound := orb.Bound{
		Min: orb.Point{input.MinLon, input.MinLat},
		Max: orb.Point{input.MaxLon, input.MaxLat},
	}
	features, err := h.svc.Imagery.Dates(ctx, bound, input.Zoom)
	if err != nil {
		if errors.Is(err, imagery.ErrZoomTooLow) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error502BadGateway("imagery lookup failed", err)
	}

	out := &ImageryOutput{}
	out.Body.Features = features
	for date := range features {
		out.Body.Dates = append(out.Body.Dates, date)
	}
	sort.Strings(out.Body.Dates)
	return out, nil
}
