package screenshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ErrEmptyRect is returned for zero-area rectangles; nothing is captured for them.
var ErrEmptyRect = errors.New("empty capture rectangle")

// Rect is a capture rectangle in absolute (virtual-screen) coordinates.
// X2/Y2 are exclusive, like image.Rectangle.Max.
type Rect struct {
	X1, Y1 int
	X2, Y2 int
}

// Normalize orders the corners so that X1<=X2 and Y1<=Y2.
func (r Rect) Normalize() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// CaptureRect grabs the pixels under r.
func CaptureRect(r Rect) (*image.RGBA, error) {
	r = r.Normalize()
	if r.Empty() {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrEmptyRect, r.Width(), r.Height())
	}

	img, err := screenshot.CaptureRect(r.Bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", r, err)
	}
	return img, nil
}

// VirtualBounds returns the union of all active display bounds.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}
