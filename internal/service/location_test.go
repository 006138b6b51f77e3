package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/resolve"
	"github.com/joeblew999/plat-geoserve/internal/upstream"
)

// geoserve fakes every upstream endpoint under one server.
type geoserve struct {
	srv      *httptest.Server
	requests atomic.Int32
	noMatch  atomic.Bool
}

func newGeoserve(t *testing.T) *geoserve {
	t.Helper()
	g := &geoserve{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.requests.Add(1)
		q := r.URL.Query()
		switch r.URL.Path {
		case "/find":
			if g.noMatch.Load() {
				fmt.Fprint(w, `{"locations": []}`)
				return
			}
			fmt.Fprint(w, `{"locations": [{"name": "Golden, Colorado", "feature": {"geometry": {"x": 254.78, "y": 39.75}}}]}`)
		case "/places.json":
			fmt.Fprintf(w, `{"event": {"features": [{"properties": {"name": "Golden", "lon": %q}}]}}`, q.Get("longitude"))
		case "/regions.json":
			typ := q.Get("type")
			fmt.Fprintf(w, `{%q: {"features": [{"properties": {"name": "%s region"}}]}}`, typ, typ)
		case "/layers.json":
			fmt.Fprint(w, `{"parameters": {"required": {"type": {"values": [{"title": "Tectonic", "name": "tectonic"}]}}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *geoserve) service(types ...string) *LocationService {
	return NewLocationService(upstream.New(upstream.Config{}), Options{
		GeocodeURL:  g.srv.URL + "/find",
		PlacesURL:   g.srv.URL + "/places.json",
		RegionsURL:  g.srv.URL + "/regions.json",
		LayersURL:   g.srv.URL + "/layers.json",
		RegionTypes: types,
	})
}

func TestLocationService_Locate(t *testing.T) {
	g := newGeoserve(t)
	s := g.service("admin", "tectonic")
	defer s.Close()

	<-s.Locate(context.Background(), "Golden, CO")

	snap := s.Snapshot()
	if snap.Location == nil || snap.Location.Name != "Golden, Colorado" {
		t.Fatalf("location=%+v", snap.Location)
	}
	if snap.Error != "" {
		t.Fatalf("error=%q", snap.Error)
	}
	want := coords.Normalize(39.75, 254.78)
	if snap.Coordinates == nil || !snap.Coordinates.Equal(want) {
		t.Fatalf("coordinates=%+v, want %+v", snap.Coordinates, want)
	}
	if len(snap.Places) != 1 || snap.Places[0].Name != "Golden" {
		t.Fatalf("places=%+v", snap.Places)
	}
	// places were queried with the normalized longitude
	if lon := fmt.Sprint(snap.Places[0].Properties["lon"]); lon != "-105.22" {
		t.Fatalf("places queried with longitude %s", lon)
	}
	for _, typ := range []string{"admin", "tectonic"} {
		got := snap.Regions[typ]
		if len(got) != 1 || got[0].Name != typ+" region" {
			t.Fatalf("regions[%s]=%+v", typ, got)
		}
	}
}

func TestLocationService_LocateNoMatchKeepsCoordinates(t *testing.T) {
	g := newGeoserve(t)
	s := g.service("admin")
	defer s.Close()

	<-s.SetCoordinates(context.Background(), coords.Coordinate{Latitude: 10, Longitude: 20})
	g.noMatch.Store(true)
	<-s.Locate(context.Background(), "nowhere")

	snap := s.Snapshot()
	if snap.Location != nil {
		t.Fatalf("location=%+v, want absent", snap.Location)
	}
	if snap.Error != resolve.MsgNoResults {
		t.Fatalf("error=%q", snap.Error)
	}
	if snap.Coordinates == nil || snap.Coordinates.Latitude != 10 {
		t.Fatalf("coordinates=%+v, want kept", snap.Coordinates)
	}
}

func TestLocationService_BlankAddressMakesNoRequest(t *testing.T) {
	g := newGeoserve(t)
	s := g.service("admin")
	defer s.Close()

	<-s.Locate(context.Background(), "   ")

	if n := g.requests.Load(); n != 0 {
		t.Fatalf("requests=%d, want 0", n)
	}
	if snap := s.Snapshot(); snap.Error != resolve.MsgAddressRequired {
		t.Fatalf("error=%q", snap.Error)
	}
}

func TestLocationService_SetCoordinatesNormalizes(t *testing.T) {
	g := newGeoserve(t)
	s := g.service()
	defer s.Close()

	<-s.SetCoordinates(context.Background(), coords.Coordinate{Latitude: 1, Longitude: 540})

	c, _ := s.Coordinates.Value()
	if c == nil || c.Longitude != 180 {
		t.Fatalf("coordinates=%+v, want lon 180", c)
	}
}

func TestLocationService_DuplicateRegionTypes(t *testing.T) {
	g := newGeoserve(t)
	s := g.service("admin", "", "admin", "fe")
	defer s.Close()

	if len(s.Regions) != 2 {
		t.Fatalf("regions=%d, want 2", len(s.Regions))
	}
	if _, ok := s.Region("fe"); !ok {
		t.Fatal("fe resolver missing")
	}
	if _, ok := s.Region("tectonic"); ok {
		t.Fatal("unexpected tectonic resolver")
	}
}

func TestLocationService_Empty(t *testing.T) {
	g := newGeoserve(t)
	s := g.service("admin")
	defer s.Close()

	<-s.FetchCatalog(context.Background())
	<-s.Locate(context.Background(), "Golden")
	s.Empty()

	snap := s.Snapshot()
	if snap.Location != nil || snap.Error != "" || snap.Coordinates != nil || snap.Places != nil || snap.Regions["admin"] != nil {
		t.Fatalf("snapshot not empty: %+v", snap)
	}
	if len(snap.Overlays) != 1 {
		t.Fatalf("overlays=%d, want catalog kept", len(snap.Overlays))
	}
}

func TestLocationService_PublishesEvents(t *testing.T) {
	g := newGeoserve(t)
	s := g.service("admin")
	defer s.Close()

	ch := s.Bus.Subscribe()
	defer s.Bus.Unsubscribe(ch)

	<-s.SetCoordinates(context.Background(), coords.Coordinate{Latitude: 1, Longitude: 2})

	seen := map[string]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 3 {
		select {
		case e := <-ch:
			seen[e.Cell] = true
			if e.Cell == "coordinates" {
				if c, ok := e.Value.(*coords.Coordinate); !ok || c.Longitude != 2 {
					t.Fatalf("coordinates event value=%#v", e.Value)
				}
			}
		case <-timeout:
			t.Fatalf("events seen=%v", seen)
		}
	}
	for _, cell := range []string{"coordinates", "places", "regions.admin"} {
		if !seen[cell] {
			t.Fatalf("no %s event in %v", cell, seen)
		}
	}
}

func TestLocationService_ClearPublishesNil(t *testing.T) {
	s := NewLocationService(nil, Options{})
	defer s.Close()

	ch := s.Bus.Subscribe()
	defer s.Bus.Unsubscribe(ch)

	s.Coordinates.Emit(&coords.Coordinate{Latitude: 1})
	s.Coordinates.Clear()

	<-ch
	e := <-ch
	if e.Cell != "coordinates" || e.Value != nil {
		t.Fatalf("event=%#v, want nil coordinates", e)
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	b := NewEventBus(1)
	ch := b.Subscribe()

	b.Publish(Event{Cell: "a"})
	b.Publish(Event{Cell: "b"})

	if e := <-ch; e.Cell != "a" {
		t.Fatalf("event=%+v", e)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected %+v", e)
	default:
	}

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	if b.Subscribers() != 0 {
		t.Fatalf("subscribers=%d", b.Subscribers())
	}
}
