package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeblew999/plat-geoserve/internal/coords"
	"github.com/joeblew999/plat-geoserve/internal/service"
)

type message struct {
	subject string
	data    string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, message{subject, string(data)})
	return nil
}

func (f *fakePublisher) received() []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message(nil), f.msgs...)
}

func TestForward(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "geo")

	if err := r.Forward(service.Event{Cell: "regions.admin", Value: nil}); err != nil {
		t.Fatal(err)
	}
	if err := r.Forward(service.Event{Cell: "coordinates", Value: &coords.Coordinate{Latitude: 1, Longitude: 2}}); err != nil {
		t.Fatal(err)
	}

	got := pub.received()
	want := []message{
		{"geo.regions.admin", "null"},
		{"geo.coordinates", `{"latitude":1,"longitude":2}`},
	}
	if len(got) != len(want) {
		t.Fatalf("msgs=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("msg %d=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestForward_PublishError(t *testing.T) {
	r := New(&fakePublisher{err: errors.New("down")}, "")
	if err := r.Forward(service.Event{Cell: "error", Value: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if s := r.Subject("error"); s != "geoserve.error" {
		t.Fatalf("subject=%s", s)
	}
}

func TestRun(t *testing.T) {
	pub := &fakePublisher{}
	r := New(pub, "geoserve")
	bus := service.NewEventBus(8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, bus)
	}()

	deadline := time.Now().Add(time.Second)
	for bus.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("relay never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	bus.Publish(service.Event{Cell: "error", Value: "No results. Please search again."})

	for len(pub.received()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("nothing published")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	m := pub.received()[0]
	if m.subject != "geoserve.error" || m.data != `"No results. Please search again."` {
		t.Fatalf("msg=%+v", m)
	}
	if bus.Subscribers() != 0 {
		t.Fatal("relay still subscribed after cancel")
	}
}
