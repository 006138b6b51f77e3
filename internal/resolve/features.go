package resolve

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/joeblew999/plat-geoserve/internal/broadcast"
	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/logger"
)

const (
	// DefaultPlacesURL is the geoserve nearby-places endpoint.
	DefaultPlacesURL = "https://earthquake.usgs.gov/ws/geoserve/places.json"
	// DefaultRegionsURL is the geoserve enclosing-regions endpoint.
	DefaultRegionsURL = "https://earthquake.usgs.gov/ws/geoserve/regions.json"

	// PlacesType is the query type used for nearby places.
	PlacesType = "event"
)

// Feature is one named place or region from a geoserve response.
type Feature struct {
	Name       string         `json:"name" doc:"Feature name"`
	Properties map[string]any `json:"properties" doc:"Raw feature properties"`
}

type featureCollection struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// FeatureResolver resolves a coordinate into the features of one geoserve
// query type. Its cell holds nil when absent and an empty list when a query
// found nothing or failed.
type FeatureResolver struct {
	client    Getter
	endpoint  string
	url       string
	queryType string

	Features *broadcast.Cell[[]Feature]
}

// NewPlaces creates the nearby-places resolver (query type "event").
func NewPlaces(client Getter, baseURL string) *FeatureResolver {
	if baseURL == "" {
		baseURL = DefaultPlacesURL
	}
	return &FeatureResolver{
		client:    client,
		endpoint:  "places",
		url:       baseURL,
		queryType: PlacesType,
		Features:  broadcast.NewCell[[]Feature]("places"),
	}
}

// NewRegions creates a resolver for one region query type, e.g. "admin"
// or "tectonic".
func NewRegions(client Getter, baseURL, queryType string) *FeatureResolver {
	if baseURL == "" {
		baseURL = DefaultRegionsURL
	}
	return &FeatureResolver{
		client:    client,
		endpoint:  "regions",
		url:       baseURL,
		queryType: queryType,
		Features:  broadcast.NewCell[[]Feature]("regions." + queryType),
	}
}

// Type returns the query type token.
func (r *FeatureResolver) Type() string {
	return r.queryType
}

// BuildURL returns the request for (lat, lon) with lon normalized.
func (r *FeatureResolver) BuildURL(lat, lon float64) string {
	c := coords.Normalize(lat, lon)
	return withQuery(r.url, url.Values{
		"latitude":  {formatFloat(c.Latitude)},
		"longitude": {formatFloat(c.Longitude)},
		"type":      {r.queryType},
	})
}

// Resolve queries features around c in the background.
func (r *FeatureResolver) Resolve(ctx context.Context, c coords.Coordinate) <-chan struct{} {
	return async(func() { r.Lookup(ctx, c) })
}

// Lookup is the blocking form of Resolve. It returns the emitted list.
func (r *FeatureResolver) Lookup(ctx context.Context, c coords.Coordinate) []Feature {
	features := []Feature{}

	var resp map[string]json.RawMessage
	if err := r.client.GetJSON(ctx, r.endpoint, r.BuildURL(c.Latitude, c.Longitude), &resp); err != nil {
		logger.L().Warn("features_failed", "endpoint", r.endpoint, "type", r.queryType, "err", err)
	} else {
		features = r.extract(resp)
	}

	r.Features.Emit(features)
	return features
}

func (r *FeatureResolver) extract(resp map[string]json.RawMessage) []Feature {
	out := []Feature{}
	raw, ok := resp[r.queryType]
	if !ok {
		return out
	}
	var fc featureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		logger.L().Warn("features_decode_failed", "endpoint", r.endpoint, "type", r.queryType, "err", err)
		return out
	}
	for _, f := range fc.Features {
		name, _ := f.Properties["name"].(string)
		out = append(out, Feature{Name: name, Properties: f.Properties})
	}
	return out
}

// Empty resets the cell to absent.
func (r *FeatureResolver) Empty() {
	r.Features.Clear()
}
