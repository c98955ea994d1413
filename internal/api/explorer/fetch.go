package explorer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-buildings/internal/service"
	"github.com/joeblew999/plat-buildings/internal/templates"
)

// FetchHandler runs the building pipeline for the selected region and
// streams progress over SSE.
type FetchHandler struct {
	explorer *service.Explorer
	session  *service.Session
	renderer *templates.Renderer
}

// NewFetchHandler creates a fetch handler.
func NewFetchHandler(ex *service.Explorer, session *service.Session, renderer *templates.Renderer) *FetchHandler {
	return &FetchHandler{explorer: ex, session: session, renderer: renderer}
}

// RegisterRoutes registers the fetch route with Huma.
func (h *FetchHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/explorer/fetch", h.Fetch, huma.OperationTags("explorer"))
}

// Fetch downloads, decompresses and filters every shard of the selected
// region's covering, one cell at a time in covering order. Progress is
// streamed as Datastar signals; the result summary is patched into the
// page when the pipeline completes.
func (h *FetchHandler) Fetch(ctx context.Context, input *EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)

			h.session.Lock()
			defer h.session.Unlock()

			if h.session.Region == nil {
				sse.Error("No region selected")
				return
			}

			result, err := h.explorer.Run(ctx, h.session.Region, func(progress int, status string) {
				sse.Progress(progress, status)
			})
			if err != nil {
				sse.Error(err.Error())
				return
			}
			h.session.Result = result

			mean := 0.0
			if result.Count > 0 {
				mean = result.MeanConfidence
			}
			sse.Signals(map[string]any{
				"buildingcount": result.Count,
				"avgconfidence": fmt.Sprintf("%.2f", mean),
				"success":       fmt.Sprintf("%d buildings loaded", result.Count),
			})
			h.patchSummary(sse, h.session.Summary())
		},
	}, nil
}

func (h *FetchHandler) patchSummary(sse *SSE, s service.Summary) {
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
