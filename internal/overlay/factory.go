// Package overlay builds the map overlay layers advertised by the geoserve
// layers catalog. Layers are cheap to construct; each one fetches its own
// geometry lazily the first time it is attached to a display surface.
package overlay

import (
	"context"
	"sync/atomic"
)

// Getter fetches and decodes one JSON document.
type Getter interface {
	GetJSON(ctx context.Context, endpoint, rawURL string, v any) error
}

// Palette is the colour cycle handed out to layers in build order.
var Palette = [...]string{
	"#1f78b4", // teal
	"#ffff99", // yellow
	"#33a02c", // green
	"#e31a1c", // red
	"#ff7f00", // orange
	"#6a3d9a", // purple
	"#b15928", // brown
}

// Factory builds layers. Its colour index keeps counting across every
// Build call for the factory's lifetime, so the composition root should
// hold a single Factory per process.
type Factory struct {
	client Getter
	url    string
	next   atomic.Uint64
}

// NewFactory creates a Factory whose layers fetch geometry from layersURL.
func NewFactory(client Getter, layersURL string) *Factory {
	if layersURL == "" {
		layersURL = DefaultLayersURL
	}
	return &Factory{client: client, url: layersURL}
}

// NextColor advances the shared index and returns its palette colour.
func (f *Factory) NextColor() string {
	i := f.next.Add(1) - 1
	return Palette[i%uint64(len(Palette))]
}

// Build creates an unloaded layer for d with the next palette colour.
func (f *Factory) Build(d Descriptor) *Layer {
	return newLayer(d, Style{
		Color:       f.NextColor(),
		FillOpacity: 0.4,
		Opacity:     1,
		Weight:      2,
		Clickable:   false,
	}, f.client, f.url)
}
