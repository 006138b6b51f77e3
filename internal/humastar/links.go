package humastar

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds the RFC 8288 Link headers generated from an API's paths.
// Install Transformer in the huma.Config before the API is created and
// call Build once every route is registered.
type Links struct {
	mu     sync.RWMutex
	byPath map[string][]string
}

// NewLinks creates an empty link table.
func NewLinks() *Links {
	return &Links{byPath: map[string][]string{}}
}

// Build walks the OpenAPI spec and generates hypermedia links.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	table := map[string][]string{}
	add := func(from, to, rel string) { table[from] = appendLink(table[from], to, rel) }

	// Collect collection paths (no {param}) and item paths (have {param}),
	// skipping streaming endpoints.
	type pathInfo struct {
		path string
		tags []string
	}
	var collections, items []pathInfo

	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if hasTag(tags, "stream") {
			continue
		}
		info := pathInfo{path: p, tags: tags}
		if strings.Contains(p, "{") {
			items = append(items, info)
		} else {
			collections = append(collections, info)
		}
	}

	// 1. Item → nearest registered ancestor (rel="collection", rel="up")
	for _, item := range items {
		for parent := path.Dir(item.path); parent != "/" && parent != "."; parent = path.Dir(parent) {
			if strings.Contains(parent, "{") {
				continue
			}
			if _, ok := oapi.Paths[parent]; ok {
				add(item.path, parent, "collection")
				add(item.path, parent, "up")
				break
			}
		}
	}

	// 2. Collection → entry point (rel="up")
	for _, coll := range collections {
		if coll.path == "/health" {
			continue
		}
		add(coll.path, "/health", "up")
	}

	// 3. Cross-link collections sharing a tag
	for i, a := range collections {
		for j, b := range collections {
			if i == j {
				continue
			}
			if sharedTag(a.tags, b.tags) != "" {
				add(a.path, b.path, lastSegment(b.path))
			}
		}
	}

	// 4. Entry point: /health links to all collections + IANA discovery rels
	for _, coll := range collections {
		if coll.path == "/health" {
			continue
		}
		add("/health", coll.path, lastSegment(coll.path))
	}
	add("/health", "/openapi.json", "describedby")
	add("/health", "/openapi.json", "service-desc")
	add("/health", "/docs", "service-doc")

	// 5. Inject OpenAPI Response.Links on operations
	for p, pi := range oapi.Paths {
		headers, ok := table[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op == nil {
				continue
			}
			injectResponseLinks(op, headers)
		}
	}

	l.mu.Lock()
	l.byPath = table
	l.mu.Unlock()
}

// For returns the generated Link header values for an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPath[opPath]
}

// Root returns the entry point links, for use by non-Huma handlers.
func (l *Links) Root() []string {
	return l.For("/health")
}

// Transformer returns a Huma Transformer that injects the generated
// Link headers at runtime.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link with the resolved URL.
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		// State-dependent action links from response body.
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

// --- helpers ---

func appendLink(links []string, to, rel string) []string {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	for _, existing := range links {
		if existing == val {
			return links
		}
	}
	return append(links, val)
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sharedTag(a, b []string) string {
	for _, at := range a {
		for _, bt := range b {
			if at == bt {
				return at
			}
		}
	}
	return ""
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success
// response so the OpenAPI document itself records the relationships.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func parseLinkHeader(h string) (rel, href string) {
	// Parse `<url>; rel="name"` format.
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if after, ok := strings.CutPrefix(relPart, `rel="`); ok {
		rel, _, _ = strings.Cut(after, `"`)
	}
	return rel, href
}
