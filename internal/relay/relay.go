// Package relay republishes location state changes on NATS so other
// processes can follow the selected location without polling the API.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joeblew999/plat-geoserve/internal/logger"
	"github.com/joeblew999/plat-geoserve/internal/service"
)

// Publisher is the subset of *nats.Conn the relay needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Relay forwards bus events to <prefix>.<cell> subjects, e.g.
// geoserve.location or geoserve.regions.admin.
type Relay struct {
	pub    Publisher
	prefix string
	conn   *nats.Conn
}

// Connect dials url and returns a relay publishing under prefix.
func Connect(url, prefix string) (*Relay, error) {
	conn, err := nats.Connect(url,
		nats.Name("geoserve"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	r := New(conn, prefix)
	r.conn = conn
	return r, nil
}

// New creates a relay over an existing publisher.
func New(pub Publisher, prefix string) *Relay {
	if prefix == "" {
		prefix = "geoserve"
	}
	return &Relay{pub: pub, prefix: prefix}
}

// Subject returns the subject for a cell name.
func (r *Relay) Subject(cell string) string {
	return r.prefix + "." + cell
}

// Forward publishes one event. Absent values are sent as JSON null.
func (r *Relay) Forward(e service.Event) error {
	data, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Cell, err)
	}
	if err := r.pub.Publish(r.Subject(e.Cell), data); err != nil {
		return fmt.Errorf("publish %s: %w", r.Subject(e.Cell), err)
	}
	return nil
}

// Run forwards events from bus until ctx is done.
func (r *Relay) Run(ctx context.Context, bus *service.EventBus) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			if err := r.Forward(e); err != nil {
				logger.L().Warn("relay_publish_failed", "cell", e.Cell, "err", err)
			}
		}
	}
}

// Close drains the NATS connection when the relay owns one.
func (r *Relay) Close() {
	if r.conn != nil {
		_ = r.conn.Drain()
	}
}
