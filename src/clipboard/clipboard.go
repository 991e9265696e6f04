package clipboard

import (
	"context"
	"strings"
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
)

func Init() error {
	return clipboard.Init()
}

// ReadText returns the current text content, trimmed. Non-text content reads as "".
func ReadText() string {
	return strings.TrimSpace(string(clipboard.Read(clipboard.FmtText)))
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Clear empties the text clipboard.
func Clear() error {
	return Write("")
}

// Watch calls onText for every non-empty text the system clipboard receives until ctx is done.
func Watch(ctx context.Context, onText func(string)) {
	ch := clipboard.Watch(ctx, clipboard.FmtText)
	for data := range ch {
		if text := strings.TrimSpace(string(data)); text != "" {
			onText(text)
		}
	}
}

// System is the process clipboard as a value, for code that takes its clipboard as a dependency.
type System struct{}

func (System) ReadText() string { return ReadText() }

func (System) Clear() error { return Clear() }
