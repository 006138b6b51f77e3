//go:build integration

// Integration test against a running server: geoserve
//
// Run: go test -tags=integration ./pkg/geoclient/
package geoclient_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
)

func baseURL() string {
	if u := os.Getenv("GEOSERVE_BASE_URL"); u != "" {
		return u
	}
	return "http://localhost:8087"
}

func do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, baseURL()+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp
}

func TestHealth(t *testing.T) {
	var body struct {
		Status string `json:"status"`
	}
	do(t, http.MethodGet, "/health", nil, &body)
	if body.Status != "ok" {
		t.Fatalf("status=%q, want ok", body.Status)
	}
}

func TestGetInfo(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}
	do(t, http.MethodGet, "/api/v1/info", nil, &body)
	if body.Name != "plat-geoserve" {
		t.Fatalf("name=%q, want plat-geoserve", body.Name)
	}
}

func TestGeocodeAndReset(t *testing.T) {
	var snap struct {
		Location *struct {
			Name string `json:"name"`
		} `json:"location"`
		Error string `json:"error"`
	}
	resp := do(t, http.MethodPost, "/api/v1/geocode", map[string]string{"address": "1711 Illinois St, Golden, CO"}, &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("geocode status=%d", resp.StatusCode)
	}
	if snap.Location == nil && snap.Error == "" {
		t.Fatal("geocode produced neither a location nor an error")
	}

	snap.Location, snap.Error = nil, ""
	do(t, http.MethodDelete, "/api/v1/state", nil, &snap)
	if snap.Location != nil || snap.Error != "" {
		t.Fatalf("state not reset: %+v", snap)
	}
}

func TestOverlays(t *testing.T) {
	var list []struct {
		Name  string `json:"name"`
		Style struct {
			Color string `json:"color"`
		} `json:"style"`
	}
	do(t, http.MethodGet, "/api/v1/overlays", nil, &list)
	for _, o := range list {
		if o.Style.Color == "" {
			t.Fatalf("overlay %s has no colour", o.Name)
		}
	}
}
