package explorer

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-buildings/internal/imagery"
	"github.com/joeblew999/plat-buildings/internal/service"
	"github.com/joeblew999/plat-buildings/internal/templates"
)

// ImageryHandler streams imagery capture dates for the current map view.
type ImageryHandler struct {
	client   *imagery.Client
	session  *service.Session
	renderer *templates.Renderer
}

// NewImageryHandler creates an imagery handler.
func NewImageryHandler(client *imagery.Client, session *service.Session, renderer *templates.Renderer) *ImageryHandler {
	return &ImageryHandler{client: client, session: session, renderer: renderer}
}

// RegisterRoutes registers the imagery route with Huma.
func (h *ImageryHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/explorer/imagery", h.Dates, huma.OperationTags("explorer"))
}

// Dates looks up capture dates for the viewport bounds in the request
// signals and patches the date list into the page.
func (h *ImageryHandler) Dates(ctx context.Context, input *SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	bound := orb.Bound{
		Min: orb.Point{signals.Float("minlon"), signals.Float("minlat")},
		Max: orb.Point{signals.Float("maxlon"), signals.Float("maxlat")},
	}
	zoom := signals.Int("zoom")

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := NewSSE(humaCtx)

			features, err := h.client.Dates(ctx, bound, zoom)
			if err != nil {
				if errors.Is(err, imagery.ErrZoomTooLow) {
					h.patchDates(sse, nil, err.Error())
					return
				}
				sse.Error(err.Error())
				return
			}

			dates := make([]string, 0, len(features))
			for date := range features {
				dates = append(dates, date)
			}
			sort.Strings(dates)

			h.session.Lock()
			h.session.ImageryDates = dates
			h.session.Unlock()

			sse.Signals(map[string]any{"imagerydates": strings.Join(dates, ", ")})
			h.patchDates(sse, dates, "")
		},
	}, nil
}

// ImageryDatesData holds data for the imagery-dates fragment.
type ImageryDatesData struct {
	Dates   []string
	Message string
}

func (h *ImageryHandler) patchDates(sse *SSE, dates []string, message string) {
	var buf bytes.Buffer
	if err := h.renderer.RenderToBuffer(&buf, "imagery-dates", ImageryDatesData{
		Dates:   dates,
		Message: message,
	}); err != nil {
		sse.Error("template error: " + err.Error())
		return
	}
	sse.Patch(buf.String(), "#imagery-dates")
}
