// Package resolve turns addresses and coordinates into location data by
// querying the geocoding and geoserve web services.
//
// Every resolver publishes its outcome into broadcast cells it owns and
// never returns a failure to its caller: transport and decoding errors are
// logged and folded into an empty result. Resolve runs the query in its own
// goroutine and returns a channel that is closed once the emission has been
// applied. Overlapping calls are not serialized, so a slow response can
// overwrite the result of a newer request.
package resolve

import (
	"context"
	"net/url"
	"strconv"
)

// Getter fetches and decodes one JSON document.
type Getter interface {
	GetJSON(ctx context.Context, endpoint, rawURL string, v any) error
}

// withQuery returns base with params merged into its query string.
func withQuery(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + params.Encode()
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// async runs fn in a goroutine and closes the returned channel when it is done.
func async(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
