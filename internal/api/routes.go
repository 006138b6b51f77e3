// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/humastar"
	"github.com/joeblew999/plat-geoserve/internal/overlay"
	"github.com/joeblew999/plat-geoserve/internal/service"
	"github.com/joeblew999/plat-geoserve/internal/vectortile"
)

// Version is the API version reported by /health and /api/v1/info.
const Version = "0.1.0"

// Types

type OverlayInput struct {
	Overlay string `path:"overlay" doc:"Overlay type name or title" example:"tectonic"`
}

type GeocodeInput struct {
	Body struct {
		Address string `json:"address" doc:"Free-text address; blank yields an error message" example:"1711 Illinois St, Golden, CO"`
	}
}

type CoordinatesInput struct {
	Body coords.Coordinate
}

type StateOutput struct {
	Body service.Snapshot
}

// OverlayBody describes one overlay and whether the server surface shows it.
type OverlayBody struct {
	overlay.Info
	Attached bool `json:"attached" doc:"Whether the overlay is attached to the server surface"`
}

var overlayActions = []humastar.ActionDef{
	{Rel: "attach", Pattern: "/api/v1/overlays/%s/geometry", Method: http.MethodGet, Title: "Show overlay"},
	{Rel: "detach", Pattern: "/api/v1/overlays/%s/geometry", Method: http.MethodDelete, Title: "Hide overlay"},
}

// Actions offers attach for hidden overlays and detach for shown ones.
func (b OverlayBody) Actions() []humastar.Action {
	if b.Attached {
		return humastar.ActionsFor(b.Name, overlayActions[1])
	}
	return humastar.ActionsFor(b.Name, overlayActions[0])
}

type OverlaysOutput struct {
	Body []OverlayBody
}

type OverlayOutput struct {
	Body OverlayBody
}

type GeometryOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type TileInput struct {
	Overlay string `path:"overlay" doc:"Overlay type name or title" example:"tectonic"`
	Z       uint32 `path:"z" doc:"Zoom level" maximum:"18"`
	X       uint32 `path:"x" doc:"Tile column"`
	Y       uint32 `path:"y" doc:"Tile row"`
}

// TileOutput is a gzipped vector tile, or 204 when no feature reaches it.
type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc     *service.LocationService
	surface *Surface
}

// NewAPIHandler creates the handlers and the server surface, which
// republishes overlay summaries on every change.
func NewAPIHandler(svc *service.LocationService) *APIHandler {
	return &APIHandler{
		svc:     svc,
		surface: NewSurface(svc.PublishOverlays),
	}
}

// Surface returns the server display surface.
func (h *APIHandler) Surface() *Surface {
	return h.surface
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterState registers location state routes.
func (h *APIHandler) RegisterState(api huma.API) {
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("location"))
	huma.Delete(api, "/api/v1/state", h.DeleteState, huma.OperationTags("location"))
	huma.Post(api, "/api/v1/geocode", h.Geocode, huma.OperationTags("location"))
	huma.Post(api, "/api/v1/coordinates", h.SetCoordinates, huma.OperationTags("location"))
}

// RegisterOverlays registers overlay catalog and geometry routes.
func (h *APIHandler) RegisterOverlays(api huma.API) {
	huma.Get(api, "/api/v1/overlays", h.GetOverlays, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{overlay}", h.GetOverlay, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{overlay}/geometry", h.ShowOverlay, huma.OperationTags("overlays"))
	huma.Delete(api, "/api/v1/overlays/{overlay}/geometry", h.HideOverlay, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{overlay}/tiles/{z}/{x}/{y}", h.GetTile, huma.OperationTags("overlays"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*StateOutput, error) {
	return &StateOutput{Body: h.svc.Snapshot()}, nil
}

func (h *APIHandler) DeleteState(ctx context.Context, input *struct{}) (*StateOutput, error) {
	h.svc.Empty()
	return &StateOutput{Body: h.svc.Snapshot()}, nil
}

func (h *APIHandler) Geocode(ctx context.Context, input *GeocodeInput) (*StateOutput, error) {
	<-h.svc.Locate(ctx, input.Body.Address)
	return &StateOutput{Body: h.svc.Snapshot()}, nil
}

func (h *APIHandler) SetCoordinates(ctx context.Context, input *CoordinatesInput) (*StateOutput, error) {
	c := input.Body
	if c.Latitude < -90 || c.Latitude > 90 {
		return nil, huma.Error400BadRequest("latitude must be within [-90, 90]")
	}
	<-h.svc.SetCoordinates(ctx, c)
	return &StateOutput{Body: h.svc.Snapshot()}, nil
}

func (h *APIHandler) GetOverlays(ctx context.Context, input *struct{}) (*OverlaysOutput, error) {
	out := []OverlayBody{}
	for _, l := range h.svc.Overlays().Layers() {
		out = append(out, h.overlayBody(l))
	}
	return &OverlaysOutput{Body: out}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *OverlayInput) (*OverlayOutput, error) {
	l, err := h.layer(input.Overlay)
	if err != nil {
		return nil, err
	}
	return &OverlayOutput{Body: h.overlayBody(l)}, nil
}

func (h *APIHandler) ShowOverlay(ctx context.Context, input *OverlayInput) (*GeometryOutput, error) {
	l, err := h.layer(input.Overlay)
	if err != nil {
		return nil, err
	}
	// The fetch outlives this request when other callers share it.
	<-h.surface.Show(context.WithoutCancel(ctx), l)
	if !l.IsLoaded() {
		return nil, huma.Error502BadGateway("overlay geometry unavailable, retry to fetch again")
	}
	body, err := l.Geometry().MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encode geometry", err)
	}
	return &GeometryOutput{ContentType: "application/geo+json", Body: body}, nil
}

func (h *APIHandler) HideOverlay(ctx context.Context, input *OverlayInput) (*struct{ Body MessageBody }, error) {
	l, err := h.layer(input.Overlay)
	if err != nil {
		return nil, err
	}
	if !h.surface.Hide(l) {
		return nil, huma.Error404NotFound("overlay not attached")
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Overlay detached"}}, nil
}

// GetTile attaches the overlay like ShowOverlay and cuts one tile from it.
func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	tile, err := vectortile.Tile(input.Z, input.X, input.Y)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	l, err := h.layer(input.Overlay)
	if err != nil {
		return nil, err
	}
	<-h.surface.Show(context.WithoutCancel(ctx), l)
	if !l.IsLoaded() {
		return nil, huma.Error502BadGateway("overlay geometry unavailable, retry to fetch again")
	}
	data, err := vectortile.Encode(l.Geometry(), tile, l.Descriptor().Name)
	if err != nil {
		return nil, huma.Error500InternalServerError("encode tile", err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{
		Status:          http.StatusOK,
		ContentType:     vectortile.ContentType,
		ContentEncoding: "gzip",
		Body:            data,
	}, nil
}

// layer finds an overlay by type name, then by title.
func (h *APIHandler) layer(key string) (*overlay.Layer, error) {
	set := h.svc.Overlays()
	if set == nil {
		return nil, huma.Error503ServiceUnavailable("overlay catalog not loaded")
	}
	for _, l := range set.Layers() {
		if l.Descriptor().Name == key {
			return l, nil
		}
	}
	if l, ok := set.Get(key); ok {
		return l, nil
	}
	return nil, huma.Error404NotFound("overlay not found")
}

func (h *APIHandler) overlayBody(l *overlay.Layer) OverlayBody {
	return OverlayBody{Info: l.Info(), Attached: h.surface.Attached(l)}
}
