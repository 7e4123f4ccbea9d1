package drag

import (
	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/queue"
)

// Point is a pointer position in the host surface's coordinate space.
type Point struct {
	X, Y int
}

// Rect is the drop target's bounds.
type Rect struct {
	X, Y, Width, Height int
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Session tracks one drag gesture from press to release. It exists because
// the host surface cannot reliably deliver native drops between its two
// panels: a primary-button press captures the payload here, pointer motion
// is tracked against the target bounds, and the release decides whether the
// gesture was a drop.
//
// Whatever the outcome, ending a session always clears the drag-in-progress
// affordance.
type Session struct {
	dragging bool
	payload  Payload
	target   Rect
	hover    bool
}

// Begin starts a manual drag session, capturing the payload and the bounds
// of the drop target. A session already in progress is replaced.
func (s *Session) Begin(p Payload, target Rect) {
	s.dragging = true
	s.payload = p
	s.target = target
	s.hover = false
}

// Dragging reports whether a gesture is in progress, for the cursor
// affordance.
func (s *Session) Dragging() bool {
	return s.dragging
}

// Hover reports whether the pointer was last observed inside the target.
func (s *Session) Hover() bool {
	return s.dragging && s.hover
}

// Move tracks pointer motion and returns the live hover state.
func (s *Session) Move(pt Point) bool {
	if !s.dragging {
		return false
	}

	s.hover = s.target.Contains(pt)

	return s.hover
}

// Drop ends the session at a pointer release. Only a release inside the
// target bounds resolves into a request; anything else is a release-outside.
// The session returns to idle in every case.
func (s *Session) Drop(pt Point, snap *catalog.Snapshot) (queue.Request, bool) {
	defer s.reset()

	if !s.dragging || !s.target.Contains(pt) {
		return queue.Request{}, false
	}

	req, err := Resolve(s.payload, snap)
	if err != nil {
		return queue.Request{}, false
	}

	return req, true
}

// Cancel abandons the gesture, e.g. on escape or focus loss.
func (s *Session) Cancel() {
	s.reset()
}

func (s *Session) reset() {
	s.dragging = false
	s.payload = Payload{}
	s.hover = false
}
