package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// Info is the static service description reported by /api/v1/info.
type Info struct {
	Cache       string
	Relay       bool
	RegionTypes []string
	Endpoints   map[string]string
}

type InfoHandler struct {
	info Info
}

func NewInfoHandler(info Info) *InfoHandler {
	return &InfoHandler{info: info}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string            `json:"name" doc:"Service name"`
	Version     string            `json:"version" doc:"Service version"`
	Cache       string            `json:"cache" doc:"Upstream response cache backend" example:"memory"`
	Relay       bool              `json:"relay" doc:"Whether state changes are relayed over NATS"`
	RegionTypes []string          `json:"region_types" doc:"Region types resolved for every coordinate"`
	Endpoints   map[string]string `json:"endpoints" doc:"Upstream service URLs"`
	Features    []string          `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	types := h.info.RegionTypes
	if types == nil {
		types = []string{}
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:        "plat-geoserve",
		Version:     Version,
		Cache:       h.info.Cache,
		Relay:       h.info.Relay,
		RegionTypes: types,
		Endpoints:   h.info.Endpoints,
		Features:    []string{"geocode", "places", "regions", "overlays", "vector-tiles", "datastar-sse"},
	}}, nil
}
