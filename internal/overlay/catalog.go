package overlay

import (
	"context"

	"github.com/joeblew999/plat-geoserve/internal/broadcast"
	"github.com/joeblew999/plat-geoserve/internal/logger"
)

// DefaultLayersURL is the geoserve layers catalog, also used as the base of
// every geometry request.
const DefaultLayersURL = "https://earthquake.usgs.gov/ws/geoserve/layers.json"

// Descriptor identifies one fetchable overlay type.
type Descriptor struct {
	Title string `json:"title" doc:"Display title"`
	Name  string `json:"name" doc:"Type token used in geometry requests"`
}

// catalogResponse is the parameter-schema document served by layers.json.
type catalogResponse struct {
	Parameters struct {
		Required struct {
			Type struct {
				Values []Descriptor `json:"values"`
			} `json:"type"`
		} `json:"required"`
	} `json:"parameters"`
}

// Catalog fetches the overlay descriptors and publishes one Set of layers
// per successful, non-empty fetch.
type Catalog struct {
	client  Getter
	url     string
	factory *Factory

	Overlays *broadcast.Cell[*Set]
}

// NewCatalog creates a Catalog reading layersURL (DefaultLayersURL when
// empty) and building layers with factory.
func NewCatalog(client Getter, layersURL string, factory *Factory) *Catalog {
	if layersURL == "" {
		layersURL = DefaultLayersURL
	}
	return &Catalog{
		client:   client,
		url:      layersURL,
		factory:  factory,
		Overlays: broadcast.NewCell[*Set]("overlays"),
	}
}

// FetchCatalog loads the catalog in the background.
func (c *Catalog) FetchCatalog(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Lookup(ctx)
	}()
	return done
}

// Lookup is the blocking form of FetchCatalog. It returns the emitted set,
// or nil when nothing was emitted.
func (c *Catalog) Lookup(ctx context.Context) *Set {
	var resp catalogResponse
	if err := c.client.GetJSON(ctx, "layers", c.url, &resp); err != nil {
		logger.L().Warn("overlay_catalog_failed", "err", err)
		return nil
	}

	descriptors := resp.Parameters.Required.Type.Values
	if len(descriptors) == 0 {
		return nil
	}

	set := c.BuildLayers(descriptors)
	c.Overlays.Emit(set)
	return set
}

// BuildLayers builds one layer per descriptor, in order.
func (c *Catalog) BuildLayers(descriptors []Descriptor) *Set {
	set := NewSet()
	for _, d := range descriptors {
		set.Put(d.Title, c.factory.Build(d))
	}
	return set
}

// Empty resets the overlays cell to absent.
func (c *Catalog) Empty() {
	c.Overlays.Clear()
}
