// Package stream contains Datastar SSE handlers that keep a map UI in step
// with the location state.
package stream

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/humastar"
	"github.com/joeblew999/plat-geoserve/internal/service"
)

// EventHandler streams state changes to the Datastar UI via SSE.
type EventHandler struct {
	svc *service.LocationService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(svc *service.LocationService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/stream", h.Events,
		huma.OperationTags("stream"),
	)
	huma.Post(api, "/api/v1/stream/locate", h.Locate,
		huma.OperationTags("stream"),
	)
}

// Events sends the full state once, then one signal patch per cell emission.
func (h *EventHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return humastar.Stream(func(sse humastar.SSE) {
		ch := h.svc.Bus.Subscribe()
		defer h.svc.Bus.Unsubscribe(ch)

		sse.Signals(SnapshotSignals(h.svc.Snapshot()))

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				sse.Signals(EventSignals(ev))
			}
		}
	}), nil
}

// Locate runs a search from Datastar signals: an "address" signal geocodes,
// otherwise "latitude" and "longitude" select a coordinate. The response
// carries the resulting state.
func (h *EventHandler) Locate(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	switch {
	case signals.Has("address"):
		<-h.svc.Locate(ctx, signals.String("address"))
	case signals.Has("latitude") && signals.Has("longitude"):
		lat := signals.Float("latitude")
		if lat < -90 || lat > 90 {
			return humastar.Stream(func(sse humastar.SSE) {
				sse.Error("Latitude must be within [-90, 90].")
			}), nil
		}
		<-h.svc.SetCoordinates(ctx, coords.Coordinate{Latitude: lat, Longitude: signals.Float("longitude")})
	default:
		return nil, huma.Error400BadRequest("address or latitude/longitude signals required")
	}

	snap := h.svc.Snapshot()
	return humastar.Stream(func(sse humastar.SSE) {
		sse.Signals(SnapshotSignals(snap))
	}), nil
}

// SnapshotSignals maps a snapshot onto the Datastar signal tree.
func SnapshotSignals(s service.Snapshot) map[string]any {
	regions := make(map[string]any, len(s.Regions))
	for t, features := range s.Regions {
		regions[t] = nullable(features)
	}
	var loc, c any
	if s.Location != nil {
		loc = s.Location
	}
	if s.Coordinates != nil {
		c = s.Coordinates
	}
	return map[string]any{
		"location":    loc,
		"error":       s.Error,
		"coordinates": c,
		"places":      nullable(s.Places),
		"regions":     regions,
		"overlays":    s.Overlays,
	}
}

// EventSignals maps one bus event onto the signal tree. Region cells
// ("regions.<type>") patch a nested signal.
func EventSignals(ev service.Event) map[string]any {
	if t, ok := strings.CutPrefix(ev.Cell, "regions."); ok {
		return map[string]any{"regions": map[string]any{t: ev.Value}}
	}
	return map[string]any{ev.Cell: ev.Value}
}

func nullable[T any](v []T) any {
	if v == nil {
		return nil
	}
	return v
}
