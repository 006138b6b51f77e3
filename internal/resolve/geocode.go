package resolve

import (
	"context"
	"net/url"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geoserve/internal/broadcast"
	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/logger"
)

// User-facing messages carried by the geocode error cell.
const (
	MsgAddressRequired = "An address is required."
	MsgNoResults       = "No results. Please search again."
)

// DefaultGeocodeURL is the ArcGIS World geocoder "find" operation.
const DefaultGeocodeURL = "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer/find"

// Extent is a candidate's bounding box in degrees.
type Extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// Location is a geocoded candidate.
type Location struct {
	Name       string            `json:"name" doc:"Matched address text"`
	Coordinate coords.Coordinate `json:"coordinate" doc:"Resolved coordinate"`
	Score      float64           `json:"score,omitempty" doc:"Match score (0-100)"`
	AddrType   string            `json:"addrType,omitempty" doc:"Match type, e.g. PointAddress"`
	Extent     *Extent           `json:"extent,omitempty" doc:"Suggested map extent"`
}

type findResponse struct {
	Locations []struct {
		Name    string  `json:"name"`
		Extent  *Extent `json:"extent"`
		Feature struct {
			Geometry struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"geometry"`
			Attributes struct {
				Score    float64 `json:"Score"`
				AddrType string  `json:"Addr_Type"`
			} `json:"attributes"`
		} `json:"feature"`
	} `json:"locations"`
}

// Geocoder resolves free-text addresses. It owns the Location and Error
// cells; an absent location is nil and an absent error is "".
type Geocoder struct {
	client Getter
	url    string

	Location *broadcast.Cell[*Location]
	Error    *broadcast.Cell[string]
}

// NewGeocoder creates a Geocoder querying baseURL (DefaultGeocodeURL when empty).
func NewGeocoder(client Getter, baseURL string) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodeURL
	}
	return &Geocoder{
		client:   client,
		url:      baseURL,
		Location: broadcast.NewCell[*Location]("location"),
		Error:    broadcast.NewCell[string]("error"),
	}
}

// BuildURL returns the find request for address.
func (g *Geocoder) BuildURL(address string) string {
	return withQuery(g.url, url.Values{
		"f":    {"json"},
		"text": {address},
	})
}

// Resolve geocodes address in the background. A blank address makes no
// request; its error is still emitted from the background goroutine.
func (g *Geocoder) Resolve(ctx context.Context, address string) <-chan struct{} {
	return async(func() { g.Lookup(ctx, address) })
}

// Lookup is the blocking form of Resolve. It returns the emitted location.
func (g *Geocoder) Lookup(ctx context.Context, address string) *Location {
	if strings.TrimSpace(address) == "" {
		g.Error.Emit(MsgAddressRequired)
		g.Location.Clear()
		return nil
	}

	var resp findResponse
	if err := g.client.GetJSON(ctx, "geocode", g.BuildURL(address), &resp); err != nil {
		logger.L().Warn("geocode_failed", "address", address, "err", err)
		resp.Locations = nil
	}

	if len(resp.Locations) == 0 {
		g.Error.Emit(MsgNoResults)
		g.Location.Clear()
		return nil
	}

	c := resp.Locations[0]
	loc := &Location{
		Name:       c.Name,
		Coordinate: coords.FromPoint(orb.Point{c.Feature.Geometry.X, c.Feature.Geometry.Y}),
		Score:      c.Feature.Attributes.Score,
		AddrType:   c.Feature.Attributes.AddrType,
		Extent:     c.Extent,
	}
	g.Error.Clear()
	g.Location.Emit(loc)
	return loc
}

// Empty resets both cells to absent.
func (g *Geocoder) Empty() {
	g.Location.Clear()
	g.Error.Clear()
}
