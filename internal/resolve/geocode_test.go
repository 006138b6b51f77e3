package resolve

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeblew999/plat-geoserve/internal/upstream"
)

// fakeService serves body for every request and counts hits.
func fakeService(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var hits atomic.Int32
	var lastURL atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastURL.Store(r.URL.String())
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, &lastURL
}

const findJSON = `{
	"locations": [
		{
			"name": "1711 Illinois St, Golden, Colorado, 80401",
			"extent": {"xmin": -105.23, "ymin": 39.74, "xmax": -105.21, "ymax": 39.76},
			"feature": {
				"geometry": {"x": -105.22, "y": 39.75},
				"attributes": {"Score": 100, "Addr_Type": "PointAddress"}
			}
		},
		{
			"name": "Golden, Colorado",
			"feature": {"geometry": {"x": -105.21, "y": 39.755}, "attributes": {"Score": 90}}
		}
	]
}`

func TestGeocoder_BlankAddress(t *testing.T) {
	srv, hits, _ := fakeService(t, http.StatusOK, findJSON)
	g := NewGeocoder(upstream.New(upstream.Config{}), srv.URL)

	var errs []string
	g.Error.Subscribe(func(v string) { errs = append(errs, v) })

	done := g.Resolve(context.Background(), "   ")
	<-done

	if n := hits.Load(); n != 0 {
		t.Fatalf("hits=%d, want no request for blank address", n)
	}
	if got, _ := g.Error.Value(); got != MsgAddressRequired {
		t.Fatalf("error=%q, want %q", got, MsgAddressRequired)
	}
	if loc, set := g.Location.Value(); !set || loc != nil {
		t.Fatalf("location=%v set=%v, want absent emission", loc, set)
	}
	if len(errs) != 2 || errs[0] != "" {
		t.Fatalf("error emissions=%q, want replay then message", errs)
	}
}

func TestGeocoder_BlankAddressIsDeferred(t *testing.T) {
	g := NewGeocoder(upstream.New(upstream.Config{}), "http://127.0.0.1:1/find")

	gate := make(chan struct{})
	var returned, emittedAfterReturn atomic.Bool
	calls := 0
	g.Error.Subscribe(func(v string) {
		calls++
		if calls == 1 {
			return // replay of the absent value
		}
		select {
		case <-gate:
		case <-time.After(time.Second):
		}
		emittedAfterReturn.Store(returned.Load())
	})

	done := g.Resolve(context.Background(), "")
	returned.Store(true)
	close(gate)
	<-done

	if !emittedAfterReturn.Load() {
		t.Fatal("error emitted before Resolve returned")
	}
	if v, _ := g.Error.Value(); v != MsgAddressRequired {
		t.Fatalf("error=%q, want %q", v, MsgAddressRequired)
	}
}

func TestGeocoder_FirstCandidate(t *testing.T) {
	srv, hits, lastURL := fakeService(t, http.StatusOK, findJSON)
	g := NewGeocoder(upstream.New(upstream.Config{}), srv.URL)
	g.Error.Emit("stale")

	<-g.Resolve(context.Background(), "1711 Illinois St, Golden")

	if n := hits.Load(); n != 1 {
		t.Fatalf("hits=%d, want 1", n)
	}
	u := lastURL.Load().(string)
	if !strings.Contains(u, "f=json") || !strings.Contains(u, "text=1711+Illinois+St%2C+Golden") {
		t.Fatalf("url=%q", u)
	}

	loc, _ := g.Location.Value()
	if loc == nil {
		t.Fatal("location absent")
	}
	if loc.Name != "1711 Illinois St, Golden, Colorado, 80401" {
		t.Fatalf("name=%q", loc.Name)
	}
	if loc.Coordinate.Latitude != 39.75 || loc.Coordinate.Longitude != -105.22 {
		t.Fatalf("coordinate=%+v", loc.Coordinate)
	}
	if loc.Score != 100 || loc.AddrType != "PointAddress" || loc.Extent == nil {
		t.Fatalf("attributes=%+v", loc)
	}
	if e, _ := g.Error.Value(); e != "" {
		t.Fatalf("error=%q, want cleared", e)
	}
}

func TestGeocoder_NoCandidates(t *testing.T) {
	srv, _, _ := fakeService(t, http.StatusOK, `{"locations": []}`)
	g := NewGeocoder(upstream.New(upstream.Config{}), srv.URL)

	if loc := g.Lookup(context.Background(), "nowhere"); loc != nil {
		t.Fatalf("Lookup=%+v, want nil", loc)
	}
	if e, _ := g.Error.Value(); e != MsgNoResults {
		t.Fatalf("error=%q, want %q", e, MsgNoResults)
	}
	if loc, set := g.Location.Value(); !set || loc != nil {
		t.Fatalf("location=%v set=%v", loc, set)
	}
}

func TestGeocoder_TransportFailure(t *testing.T) {
	srv, _, _ := fakeService(t, http.StatusInternalServerError, "")
	g := NewGeocoder(upstream.New(upstream.Config{}), srv.URL)
	g.Location.Emit(&Location{Name: "previous"})

	<-g.Resolve(context.Background(), "Golden")

	if e, _ := g.Error.Value(); e != MsgNoResults {
		t.Fatalf("error=%q, want %q", e, MsgNoResults)
	}
	if loc, _ := g.Location.Value(); loc != nil {
		t.Fatalf("location=%+v, want absent", loc)
	}
}

func TestGeocoder_Empty(t *testing.T) {
	g := NewGeocoder(upstream.New(upstream.Config{}), "")
	g.Location.Emit(&Location{Name: "x"})
	g.Error.Emit("boom")

	loc := &Location{}
	msg := "unset"
	g.Location.Subscribe(func(v *Location) { loc = v })
	g.Error.Subscribe(func(v string) { msg = v })
	g.Empty()

	if loc != nil || msg != "" {
		t.Fatalf("after Empty: location=%v error=%q", loc, msg)
	}
}

func TestGeocoder_BuildURL(t *testing.T) {
	g := NewGeocoder(nil, "")
	u := g.BuildURL("Golden, CO")
	if !strings.HasPrefix(u, DefaultGeocodeURL+"?") {
		t.Fatalf("url=%q", u)
	}
	if !strings.HasSuffix(u, "f=json&text=Golden%2C+CO") {
		t.Fatalf("url=%q", u)
	}
}
