package humastar

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
)

type itemBody struct {
	Name     string `json:"name"`
	Attached bool   `json:"attached"`
}

func (b itemBody) Actions() []Action {
	if b.Attached {
		return ActionsFor(b.Name, ActionDef{Rel: "detach", Pattern: "/api/v1/items/%s", Method: http.MethodDelete})
	}
	return nil
}

func noop(ctx context.Context, input *struct{}) (*struct{ Body itemBody }, error) {
	return &struct{ Body itemBody }{Body: itemBody{Name: "a b", Attached: true}}, nil
}

func TestLinks(t *testing.T) {
	links := NewLinks()
	config := huma.DefaultConfig("Test", "1.0.0")
	config.CreateHooks = nil
	config.Transformers = append(config.Transformers, links.Transformer())
	_, api := humatest.New(t, config)

	huma.Get(api, "/health", noop, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/items", noop, huma.OperationTags("items"))
	huma.Get(api, "/api/v1/items/{id}", func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{ Body itemBody }, error) {
		return noop(ctx, nil)
	}, huma.OperationTags("items"))
	huma.Get(api, "/api/v1/stream", noop, huma.OperationTags("stream"))
	links.Build(api)

	root := strings.Join(links.Root(), ",")
	for _, want := range []string{`</api/v1/items>; rel="items"`, `</openapi.json>; rel="describedby"`} {
		if !strings.Contains(root, want) {
			t.Errorf("root links missing %s: %s", want, root)
		}
	}
	if strings.Contains(root, "/api/v1/stream") {
		t.Errorf("stream endpoint linked from root: %s", root)
	}

	resp := api.Get("/api/v1/items/x")
	got := strings.Join(resp.Header().Values("Link"), ",")
	for _, want := range []string{
		`</api/v1/items>; rel="collection"`,
		`</api/v1/items/x>; rel="self"`,
		`</api/v1/items/a%20b>; rel="detach"; method="DELETE"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("item links missing %s: %s", want, got)
		}
	}
}

func TestActionLinkHeader(t *testing.T) {
	a := Action{Rel: "attach", Href: "/x", Method: "GET", Title: "Show"}
	if got := a.LinkHeader(); got != `</x>; rel="attach"; method="GET"; title="Show"` {
		t.Fatalf("header=%s", got)
	}
}

func TestParseLinkHeader(t *testing.T) {
	rel, href := parseLinkHeader(`</api/v1/state>; rel="state"`)
	if rel != "state" || href != "/api/v1/state" {
		t.Fatalf("rel=%q href=%q", rel, href)
	}
}

func TestSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"address": "Golden", "latitude": 39.75}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.String("address") != "Golden" || s.Float("latitude") != 39.75 {
		t.Fatalf("signals=%v", s)
	}
	if s.Has("longitude") || s.String("latitude") != "" {
		t.Fatalf("signals=%v", s)
	}

	in := &SignalsInput{RawBody: []byte("{")}
	if _, err := in.MustParse(); err == nil {
		t.Fatal("expected error")
	}
}
