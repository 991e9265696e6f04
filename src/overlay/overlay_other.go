//go:build !windows

package overlay

import (
	"context"
	"fmt"

	"screen-answer-llm/src/screenshot"
)

type unsupportedSelector struct{}

func newPlatformSelector() Selector { return unsupportedSelector{} }

func (unsupportedSelector) Select(context.Context) (screenshot.Rect, bool, error) {
	return screenshot.Rect{}, false, fmt.Errorf("interactive region selection not implemented for this platform")
}
