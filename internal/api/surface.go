package api

import (
	"context"
	"sync"

	"github.com/joeblew999/plat-geoserve/internal/overlay"
)

// Surface is the server-side display surface. Clients attach overlays to it
// through the geometry endpoints; every change is reported to onChange.
type Surface struct {
	mu       sync.Mutex
	attached map[*overlay.Layer]bool
	onChange func()

	// showMu serializes Show and Hide; loads holds the fetch started by the
	// attachment currently in place.
	showMu sync.Mutex
	loads  map[*overlay.Layer]<-chan struct{}
}

var (
	_ overlay.Surface          = (*Surface)(nil)
	_ overlay.GeometryObserver = (*Surface)(nil)
)

// NewSurface creates a surface calling onChange (may be nil) after every
// attach, detach and geometry merge.
func NewSurface(onChange func()) *Surface {
	if onChange == nil {
		onChange = func() {}
	}
	return &Surface{
		attached: map[*overlay.Layer]bool{},
		onChange: onChange,
		loads:    map[*overlay.Layer]<-chan struct{}{},
	}
}

func (s *Surface) OnAttach(l *overlay.Layer) {
	s.mu.Lock()
	s.attached[l] = true
	s.mu.Unlock()
	s.onChange()
}

func (s *Surface) OnDetach(l *overlay.Layer) {
	s.mu.Lock()
	delete(s.attached, l)
	s.mu.Unlock()
	s.onChange()
}

func (s *Surface) OnGeometry(*overlay.Layer) {
	s.onChange()
}

// Attached reports whether l is on the surface.
func (s *Surface) Attached(l *overlay.Layer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached[l]
}

// Show attaches l once. Callers arriving while the fetch is in flight share
// its channel. A layer whose fetch failed is re-attached, which retries it.
func (s *Surface) Show(ctx context.Context, l *overlay.Layer) <-chan struct{} {
	s.showMu.Lock()
	defer s.showMu.Unlock()

	if s.Attached(l) {
		if done, ok := s.loads[l]; ok && (pending(done) || l.IsLoaded()) {
			return done
		}
		l.Detach(s)
	}
	done := l.Attach(ctx, s)
	s.loads[l] = done
	return done
}

// Hide detaches l. It reports false when l was not attached.
func (s *Surface) Hide(l *overlay.Layer) bool {
	s.showMu.Lock()
	defer s.showMu.Unlock()

	if !s.Attached(l) {
		return false
	}
	delete(s.loads, l)
	l.Detach(s)
	return true
}

func pending(done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
		return true
	}
}
