package overlay

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoserve/internal/logger"
	"github.com/joeblew999/plat-geoserve/internal/metrics"
)

// Surface is the display a layer is attached to. The layer calls OnAttach
// before it starts loading and OnDetach when it is removed.
type Surface interface {
	OnAttach(l *Layer)
	OnDetach(l *Layer)
}

// GeometryObserver is implemented by surfaces that redraw when features are
// merged into an attached layer.
type GeometryObserver interface {
	OnGeometry(l *Layer)
}

// MapLayer is the capability set a rendering collaborator relies on.
type MapLayer interface {
	Attach(ctx context.Context, s Surface) <-chan struct{}
	Detach(s Surface)
	IsLoaded() bool
	Geometry() *geojson.FeatureCollection
}

var _ MapLayer = (*Layer)(nil)

// Style holds the path options a renderer applies to every feature.
type Style struct {
	Color       string  `json:"color" doc:"Stroke and fill colour (CSS)" example:"#1f78b4"`
	FillOpacity float64 `json:"fillOpacity" doc:"Fill opacity (0-1)"`
	Opacity     float64 `json:"opacity" doc:"Stroke opacity (0-1)"`
	Weight      float64 `json:"weight" doc:"Stroke width in pixels"`
	Clickable   bool    `json:"clickable" doc:"Whether features receive pointer events"`
}

// Info is a serializable summary of a layer.
type Info struct {
	Title    string `json:"title" doc:"Overlay title" example:"Tectonic Summary Regions"`
	Name     string `json:"name" doc:"Overlay type token" example:"tectonic"`
	Style    Style  `json:"style" doc:"Render style"`
	Loaded   bool   `json:"loaded" doc:"Whether the geometry fetch has been started and not failed"`
	Features int    `json:"features" doc:"Number of features merged so far"`
}

// Layer is an overlay whose geometry is fetched the first time it is
// attached to a Surface and kept afterwards. A failed fetch clears the
// loaded flag so the next attachment retries.
type Layer struct {
	desc   Descriptor
	style  Style
	client Getter
	url    string

	loaded atomic.Bool

	mu       sync.RWMutex
	geometry *geojson.FeatureCollection
	surfaces []Surface
}

func newLayer(d Descriptor, style Style, client Getter, baseURL string) *Layer {
	return &Layer{
		desc:     d,
		style:    style,
		client:   client,
		url:      baseURL,
		geometry: geojson.NewFeatureCollection(),
	}
}

// Descriptor returns the catalog entry the layer was built from.
func (l *Layer) Descriptor() Descriptor { return l.desc }

// Style returns the render style, including the assigned palette colour.
func (l *Layer) Style() Style { return l.style }

// IsLoaded reports whether a fetch has been started and has not failed.
func (l *Layer) IsLoaded() bool { return l.loaded.Load() }

// BuildURL returns the geometry request for this layer's type.
func (l *Layer) BuildURL() string {
	u, err := url.Parse(l.url)
	if err != nil {
		return l.url + "?type=" + url.QueryEscape(l.desc.Name)
	}
	q := u.Query()
	q.Set("type", l.desc.Name)
	u.RawQuery = q.Encode()
	return u.String()
}

// Attach adds the layer to s and, on first attachment, starts the geometry
// fetch. The returned channel is closed when that fetch has finished, or
// immediately when no fetch was needed.
func (l *Layer) Attach(ctx context.Context, s Surface) <-chan struct{} {
	l.mu.Lock()
	l.surfaces = append(l.surfaces, s)
	l.mu.Unlock()
	s.OnAttach(l)

	done := make(chan struct{})
	if !l.loaded.CompareAndSwap(false, true) {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		l.load(ctx)
	}()
	return done
}

// Detach removes the layer from s. Loaded geometry is kept.
func (l *Layer) Detach(s Surface) {
	l.mu.Lock()
	for i, cur := range l.surfaces {
		if cur == s {
			l.surfaces = append(l.surfaces[:i:i], l.surfaces[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	s.OnDetach(l)
}

// Geometry returns a snapshot of the features merged so far.
func (l *Layer) Geometry() *geojson.FeatureCollection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, l.geometry.Features...)
	return fc
}

// Info summarizes the layer.
func (l *Layer) Info() Info {
	l.mu.RLock()
	n := len(l.geometry.Features)
	l.mu.RUnlock()
	return Info{
		Title:    l.desc.Title,
		Name:     l.desc.Name,
		Style:    l.style,
		Loaded:   l.IsLoaded(),
		Features: n,
	}
}

func (l *Layer) load(ctx context.Context) {
	var resp map[string]json.RawMessage
	if err := l.client.GetJSON(ctx, "overlay", l.BuildURL(), &resp); err != nil {
		l.fail(err)
		return
	}

	raw, ok := resp[l.desc.Name]
	if !ok {
		logger.L().Warn("overlay_type_missing", "type", l.desc.Name)
		metrics.OverlayFetchesTotal.WithLabelValues(l.desc.Name, "empty").Inc()
		return
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		l.fail(err)
		return
	}

	l.mu.Lock()
	l.geometry.Features = append(l.geometry.Features, fc.Features...)
	surfaces := append([]Surface(nil), l.surfaces...)
	l.mu.Unlock()

	metrics.OverlayFetchesTotal.WithLabelValues(l.desc.Name, "ok").Inc()
	for _, s := range surfaces {
		if o, ok := s.(GeometryObserver); ok {
			o.OnGeometry(l)
		}
	}
}

// fail lets the next attachment try again.
func (l *Layer) fail(err error) {
	logger.L().Warn("overlay_load_failed", "type", l.desc.Name, "err", err)
	metrics.OverlayFetchesTotal.WithLabelValues(l.desc.Name, "error").Inc()
	l.loaded.Store(false)
}
