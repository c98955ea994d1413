package explorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-buildings/internal/service"
	"github.com/joeblew999/plat-buildings/internal/templates"
)

// RegionHandler handles region upload and feature selection.
type RegionHandler struct {
	regions  *service.RegionService
	session  *service.Session
	explorer *service.Explorer
	renderer *templates.Renderer
}

// NewRegionHandler creates a region handler.
func NewRegionHandler(regions *service.RegionService, session *service.Session, ex *service.Explorer, renderer *templates.Renderer) *RegionHandler {
	return &RegionHandler{regions: regions, session: session, explorer: ex, renderer: renderer}
}

// RegisterRoutes registers the region routes with Huma.
func (h *RegionHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/explorer/regions/upload", h.Upload, huma.OperationTags("explorer"))
	huma.Get(api, "/api/v1/explorer/regions/select", h.ListSelect, huma.OperationTags("explorer"))
	huma.Get(api, "/api/v1/explorer/regions/{file}/features", h.ListFeatures, huma.OperationTags("explorer"))
	huma.Post(api, "/api/v1/explorer/regions/choose", h.Choose, huma.OperationTags("explorer"))
}

// RegionUploadInput is a multipart GeoJSON upload.
type RegionUploadInput struct {
	RawBody multipart.Form
}

// Upload stores an uploaded GeoJSON FeatureCollection and refreshes the
// region select list.
func (h *RegionHandler) Upload(ctx context.Context, input *RegionUploadInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)

			files := input.RawBody.File["file"]
			if len(files) == 0 {
				sse.Error("No file provided")
				return
			}

			fileHeader := files[0]
			file, err := fileHeader.Open()
			if err != nil {
				sse.Error("Failed to open uploaded file")
				return
			}
			defer file.Close()

			if err := h.regions.Save(fileHeader.Filename, file); err != nil {
				sse.Error(err.Error())
				return
			}

			sse.Success("Region uploaded: " + fileHeader.Filename)
			h.patchRegionSelect(sse)
			h.patchFeatureSelect(sse, fileHeader.Filename)
		},
	}, nil
}

// ListSelect streams the region file select options.
func (h *RegionHandler) ListSelect(ctx context.Context, input *EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)
			h.patchRegionSelect(sse)
		},
	}, nil
}

// FeatureListInput names the region file whose features are listed.
type FeatureListInput struct {
	File string `path:"file" doc:"Uploaded region file name"`
}

// ListFeatures streams the feature select options for one region file.
func (h *RegionHandler) ListFeatures(ctx context.Context, input *FeatureListInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)
			h.patchFeatureSelect(sse, input.File)
		},
	}, nil
}

// Choose selects a named feature as the active region: validates its
// geometry kind, computes the covering, resets session state derived
// from the previous selection, and invalidates the shard cache.
func (h *RegionHandler) Choose(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	regionFile := signals.String("regionfile")
	featureName := signals.String("featurename")
	if regionFile == "" || featureName == "" {
		return nil, huma.Error400BadRequest("Region file and feature name are required")
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)

			feature, err := h.regions.Find(regionFile, featureName)
			if err != nil {
				sse.Error(err.Error())
				return
			}
			if err := service.ValidateRegionGeometry(feature.Geometry); err != nil {
				sse.Error(err.Error())
				return
			}

			tokens := service.CoverGeometry(feature.Geometry)

			h.session.Lock()
			changed := h.session.RegionName != feature.Name
			h.session.SelectRegion(feature.Name, feature.Geometry, tokens)
			summary := h.session.Summary()
			h.session.Unlock()

			// A new region query invalidates the whole shard cache,
			// registered views included.
			if changed {
				h.explorer.InvalidateCache()
			}

			sse.Signals(map[string]any{
				"selectedregion": feature.Name,
				"tokencount":     len(tokens),
			})
			h.patchSummary(sse, summary)
		},
	}, nil
}

// SummaryData holds data for the region summary fragment.
type SummaryData struct {
	Region         string
	Tokens         int
	Count          int
	MeanConfidence string
	HasResult      bool
}

func (h *RegionHandler) patchSummary(sse *SSE, s service.Summary) {
	var buf bytes.Buffer
	data := SummaryData{
		Region:    s.Region,
		Tokens:    len(s.Tokens),
		Count:     s.Count,
		HasResult: s.HasResult,
	}
	if s.HasResult {
		data.MeanConfidence = fmt.Sprintf("%.2f", s.MeanConfidence)
	}
	if err := h.renderer.RenderToBuffer(&buf, "region-summary", data); err != nil {
		sse.Error("template error: " + err.Error())
		return
	}
	sse.Patch(buf.String(), "#region-summary")
}

func (h *RegionHandler) patchRegionSelect(sse *SSE) {
	names, err := h.regions.List()
	if err != nil {
		sse.Error("Failed to list regions: " + err.Error())
		return
	}

	var buf bytes.Buffer
	h.renderer.RenderToBuffer(&buf, "select-option", SelectOptionData{Label: "-- Select a region file --"})
	for _, name := range names {
		h.renderer.RenderToBuffer(&buf, "select-option", SelectOptionData{Value: name, Label: name})
	}
	sse.Patch(buf.String(), "#region-select")
}

func (h *RegionHandler) patchFeatureSelect(sse *SSE, regionFile string) {
	features, err := h.regions.Features(regionFile)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			sse.Error("Region file not found: " + regionFile)
		} else {
			sse.Error(err.Error())
		}
		return
	}

	var buf bytes.Buffer
	h.renderer.RenderToBuffer(&buf, "select-option", SelectOptionData{Label: "-- Select a feature --"})
	for _, f := range features {
		h.renderer.RenderToBuffer(&buf, "select-option", SelectOptionData{Value: f.Name, Label: f.Name})
	}
	sse.Patch(buf.String(), "#feature-select")
}
