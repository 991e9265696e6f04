package overlay

import (
	"context"
	"errors"

	"screen-answer-llm/src/screenshot"
)

// ErrCapture covers every way a region capture can fail: a degenerate selection, a failed
// grab or a failed save. No artifact exists when it is returned.
var ErrCapture = errors.New("capture error")

// Selector defines a synchronous region-selection API owned by the event loop.
// The call is blocking and MUST be invoked only from the single event-loop goroutine.
// Returns (rect, cancelled, error). If cancelled is true, rect is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context) (screenshot.Rect, bool, error)
}

// NewSelector returns the platform implementation.
func NewSelector() Selector {
	return newPlatformSelector()
}
