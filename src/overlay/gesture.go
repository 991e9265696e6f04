package overlay

import (
	"image"

	"screen-answer-llm/src/screenshot"
)

type GestureState int

const (
	Idle GestureState = iota
	Pressing
	Dragging
)

func (s GestureState) String() string {
	switch s {
	case Pressing:
		return "pressing"
	case Dragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Gesture tracks one press/drag/release sequence on a selection surface. Points are
// surface-local; the surface origin turns them into absolute screen coordinates.
type Gesture struct {
	origin  image.Point
	state   GestureState
	start   image.Point
	current image.Point
}

func NewGesture(origin image.Point) *Gesture {
	return &Gesture{origin: origin}
}

func (g *Gesture) State() GestureState { return g.state }

// Press starts a new selection at p, discarding any unfinished one.
func (g *Gesture) Press(p image.Point) {
	g.state = Pressing
	g.start = p
	g.current = p
}

// Move updates the live corner. It reports whether there is a rectangle to redraw.
func (g *Gesture) Move(p image.Point) bool {
	if g.state == Idle {
		return false
	}
	g.state = Dragging
	g.current = p
	return true
}

// Release finishes the gesture and returns the absolute, normalized rectangle.
// ok is false when there was no press to release, which counts as cancelled.
// The rectangle may be degenerate; callers decide what an empty selection means.
func (g *Gesture) Release(p image.Point) (rect screenshot.Rect, ok bool) {
	if g.state == Idle {
		return screenshot.Rect{}, false
	}
	g.current = p
	g.state = Idle

	return screenshot.Rect{
		X1: g.start.X + g.origin.X,
		Y1: g.start.Y + g.origin.Y,
		X2: g.current.X + g.origin.X,
		Y2: g.current.Y + g.origin.Y,
	}.Normalize(), true
}

func (g *Gesture) Cancel() {
	g.state = Idle
}

// Live returns the surface-local rectangle being dragged, for painting.
func (g *Gesture) Live() (image.Rectangle, bool) {
	if g.state == Idle {
		return image.Rectangle{}, false
	}
	return image.Rectangle{Min: g.start, Max: g.current}.Canon(), true
}
