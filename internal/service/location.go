// Package service composes the resolvers and the overlay catalog into the
// location state shared by the API, the live stream and the relay.
package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-geoserve/internal/broadcast"
	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/logger"
	"github.com/joeblew999/plat-geoserve/internal/overlay"
	"github.com/joeblew999/plat-geoserve/internal/resolve"
)

// Getter fetches and decodes one JSON document.
type Getter interface {
	GetJSON(ctx context.Context, endpoint, rawURL string, v any) error
}

// Options configures the upstream endpoints. Empty URLs use the package
// defaults of resolve and overlay.
type Options struct {
	GeocodeURL  string
	PlacesURL   string
	RegionsURL  string
	LayersURL   string
	RegionTypes []string
	// BusSize is the per-subscriber event buffer (default 64).
	BusSize int
}

// Snapshot is the current value of every cell. Absent values are null.
type Snapshot struct {
	Location    *resolve.Location            `json:"location" doc:"Geocoded location, null when absent"`
	Error       string                       `json:"error,omitempty" doc:"User-facing geocode error"`
	Coordinates *coords.Coordinate           `json:"coordinates" doc:"Selected coordinate, null when absent"`
	Places      []resolve.Feature            `json:"places" doc:"Nearby places, null when not yet queried"`
	Regions     map[string][]resolve.Feature `json:"regions" doc:"Enclosing regions per query type"`
	Overlays    []overlay.Info               `json:"overlays" doc:"Overlay layers in catalog order"`
}

// LocationService owns the location state: the geocoder cells, the
// selected coordinate, the places and regions around it, and the overlay
// catalog. Every cell emission is also published on Bus.
type LocationService struct {
	Geocoder    *resolve.Geocoder
	Coordinates *broadcast.Cell[*coords.Coordinate]
	Places      *resolve.FeatureResolver
	Regions     []*resolve.FeatureResolver
	Catalog     *overlay.Catalog
	Factory     *overlay.Factory

	Bus *EventBus

	unsubscribe []func()
}

// NewLocationService wires the resolvers to client.
func NewLocationService(client Getter, opts Options) *LocationService {
	if opts.BusSize == 0 {
		opts.BusSize = 64
	}
	factory := overlay.NewFactory(client, opts.LayersURL)
	s := &LocationService{
		Geocoder:    resolve.NewGeocoder(client, opts.GeocodeURL),
		Coordinates: broadcast.NewCell[*coords.Coordinate]("coordinates"),
		Places:      resolve.NewPlaces(client, opts.PlacesURL),
		Catalog:     overlay.NewCatalog(client, opts.LayersURL, factory),
		Factory:     factory,
		Bus:         NewEventBus(opts.BusSize),
	}
	seen := make(map[string]bool)
	for _, t := range opts.RegionTypes {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		s.Regions = append(s.Regions, resolve.NewRegions(client, opts.RegionsURL, t))
	}

	s.unsubscribe = append(s.unsubscribe,
		publish(s.Bus, s.Geocoder.Location, func(v *resolve.Location) any { return nilIfAbsent(v) }),
		publish(s.Bus, s.Geocoder.Error, func(v string) any { return v }),
		publish(s.Bus, s.Coordinates, func(v *coords.Coordinate) any { return nilIfAbsent(v) }),
		publish(s.Bus, s.Places.Features, func(v []resolve.Feature) any { return v }),
		publish(s.Bus, s.Catalog.Overlays, func(v *overlay.Set) any {
			if v == nil {
				return nil
			}
			return v.Infos()
		}),
	)
	for _, r := range s.Regions {
		s.unsubscribe = append(s.unsubscribe,
			publish(s.Bus, r.Features, func(v []resolve.Feature) any { return v }))
	}
	return s
}

func publish[T any](bus *EventBus, c *broadcast.Cell[T], value func(T) any) func() {
	name := c.Name()
	return c.Subscribe(func(v T) {
		bus.Publish(Event{Cell: name, Value: value(v)})
	})
}

// nilIfAbsent keeps a typed nil pointer from reaching the bus as a
// non-nil interface.
func nilIfAbsent[T any](v *T) any {
	if v == nil {
		return nil
	}
	return v
}

// Region returns the resolver for one region query type.
func (s *LocationService) Region(queryType string) (*resolve.FeatureResolver, bool) {
	for _, r := range s.Regions {
		if r.Type() == queryType {
			return r, true
		}
	}
	return nil, false
}

// Locate geocodes address in the background and, when a location is found,
// selects its coordinate. The channel is closed after the last emission.
func (s *LocationService) Locate(ctx context.Context, address string) <-chan struct{} {
	return run(func() { s.LookupAddress(ctx, address) })
}

// LookupAddress is the blocking form of Locate. When no location is found
// the coordinate and feature cells keep their previous values.
func (s *LocationService) LookupAddress(ctx context.Context, address string) *resolve.Location {
	loc := s.Geocoder.Lookup(ctx, address)
	if loc == nil {
		return nil
	}
	s.LookupCoordinates(ctx, loc.Coordinate)
	return loc
}

// SetCoordinates selects c in the background and refreshes the places and
// regions around it.
func (s *LocationService) SetCoordinates(ctx context.Context, c coords.Coordinate) <-chan struct{} {
	return run(func() { s.LookupCoordinates(ctx, c) })
}

// LookupCoordinates is the blocking form of SetCoordinates. Places and
// every region type are queried concurrently.
func (s *LocationService) LookupCoordinates(ctx context.Context, c coords.Coordinate) {
	c = c.Normalized()
	s.Coordinates.Emit(&c)

	var g errgroup.Group
	g.Go(func() error {
		s.Places.Lookup(ctx, c)
		return nil
	})
	for _, r := range s.Regions {
		g.Go(func() error {
			r.Lookup(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	logger.L().Debug("coordinates_resolved", "lat", c.Latitude, "lon", c.Longitude)
}

// FetchCatalog loads the overlay catalog in the background.
func (s *LocationService) FetchCatalog(ctx context.Context) <-chan struct{} {
	return s.Catalog.FetchCatalog(ctx)
}

// Overlays returns the current overlay set, or nil before the catalog
// has loaded.
func (s *LocationService) Overlays() *overlay.Set {
	set, _ := s.Catalog.Overlays.Value()
	return set
}

// PublishOverlays republishes the overlay summaries. Layer state such as
// the loaded flag changes without a catalog emission, so surfaces call this
// when they attach, detach or receive geometry.
func (s *LocationService) PublishOverlays() {
	set := s.Overlays()
	if set == nil {
		return
	}
	s.Bus.Publish(Event{Cell: s.Catalog.Overlays.Name(), Value: set.Infos()})
}

// Empty resets the location, error, coordinate, places and regions cells.
// The overlay catalog does not depend on the location and is kept.
func (s *LocationService) Empty() {
	s.Geocoder.Empty()
	s.Coordinates.Clear()
	s.Places.Empty()
	for _, r := range s.Regions {
		r.Empty()
	}
}

// Snapshot reads every cell.
func (s *LocationService) Snapshot() Snapshot {
	snap := Snapshot{
		Regions:  make(map[string][]resolve.Feature, len(s.Regions)),
		Overlays: s.Overlays().Infos(),
	}
	snap.Location, _ = s.Geocoder.Location.Value()
	snap.Error, _ = s.Geocoder.Error.Value()
	snap.Coordinates, _ = s.Coordinates.Value()
	snap.Places, _ = s.Places.Features.Value()
	for _, r := range s.Regions {
		snap.Regions[r.Type()], _ = r.Features.Value()
	}
	return snap
}

// Close detaches the service from its cells; the bus stops receiving
// events.
func (s *LocationService) Close() {
	for _, u := range s.unsubscribe {
		u()
	}
	s.unsubscribe = nil
}

func run(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
